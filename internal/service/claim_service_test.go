package service

import (
	"errors"
	"testing"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/models"
)

func TestClaimPreviewTransfersOwnership(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	owner := env.createUser(t, "owner@example.com")
	svc := NewClaimService(env.orderRepo, env.userRepo, env.analyticsRepo)

	guest, err := env.previewService().CreateGuest(CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("guest preview failed: %v", err)
	}
	guestUserID := env.reloadOrder(t, guest.OrderID).UserID

	// 游客期间生成的设计一并转移
	design := &models.Design{
		UserID:  guestUserID,
		OrderID: &guest.OrderID,
		Prompt:  "sunset over mountains",
		Status:  constants.DesignStatusCompleted,
	}
	if err := env.designRepo.Create(design); err != nil {
		t.Fatalf("create design failed: %v", err)
	}

	claimed, err := svc.ClaimPreview(guest.OrderID, guest.GuestToken, owner.ID)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed.UserID != owner.ID {
		t.Fatalf("order owner want %d got %d", owner.ID, claimed.UserID)
	}

	reloaded := env.reloadOrder(t, guest.OrderID)
	if reloaded.UserID != owner.ID {
		t.Fatalf("persisted owner want %d got %d", owner.ID, reloaded.UserID)
	}
	if reloaded.PreviewGuestToken != nil {
		t.Fatalf("guest token must be cleared after claim")
	}

	movedDesign, err := env.designRepo.GetByID(design.ID)
	if err != nil || movedDesign == nil {
		t.Fatalf("design lookup failed: %v", err)
	}
	if movedDesign.UserID != owner.ID {
		t.Fatalf("design owner want %d got %d", owner.ID, movedDesign.UserID)
	}
}

func TestClaimPreviewTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	first := env.createUser(t, "first@example.com")
	second := env.createUser(t, "second@example.com")
	svc := NewClaimService(env.orderRepo, env.userRepo, env.analyticsRepo)

	guest, err := env.previewService().CreateGuest(CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("guest preview failed: %v", err)
	}

	if _, err := svc.ClaimPreview(guest.OrderID, guest.GuestToken, first.ID); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if _, err := svc.ClaimPreview(guest.OrderID, guest.GuestToken, second.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("second claim want ErrOrderNotFound got %v", err)
	}

	if owner := env.reloadOrder(t, guest.OrderID).UserID; owner != first.ID {
		t.Fatalf("owner must stay with first claimer, got %d", owner)
	}
}

func TestClaimPreviewHidesOrderState(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "user@example.com")
	svc := NewClaimService(env.orderRepo, env.userRepo, env.analyticsRepo)

	guest, err := env.previewService().CreateGuest(CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("guest preview failed: %v", err)
	}

	// 令牌不匹配与订单不存在返回同一错误
	if _, err := svc.ClaimPreview(guest.OrderID, "wrong-token", user.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("wrong token want ErrOrderNotFound got %v", err)
	}
	if _, err := svc.ClaimPreview(99999, guest.GuestToken, user.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("missing order want ErrOrderNotFound got %v", err)
	}
	if _, err := svc.ClaimPreview(guest.OrderID, "", user.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("empty token want ErrOrderNotFound got %v", err)
	}
}

func TestClaimPreviewRejectsProcessedOrder(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "user@example.com")
	svc := NewClaimService(env.orderRepo, env.userRepo, env.analyticsRepo)

	guest, err := env.previewService().CreateGuest(CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("guest preview failed: %v", err)
	}
	env.setOrderStatus(t, guest.OrderID, constants.OrderStatusPaid)

	_, err = svc.ClaimPreview(guest.OrderID, guest.GuestToken, user.ID)
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("want PolicyError got %v", err)
	}
	if policyErr.Message != "This order has already been processed" {
		t.Fatalf("unexpected message: %s", policyErr.Message)
	}
}

func TestClaimPreviewCleansUpGuestAccount(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "user@example.com")
	svc := NewClaimService(env.orderRepo, env.userRepo, env.analyticsRepo)

	guest, err := env.previewService().CreateGuest(CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("guest preview failed: %v", err)
	}
	guestUserID := env.reloadOrder(t, guest.OrderID).UserID

	if _, err := svc.ClaimPreview(guest.OrderID, guest.GuestToken, user.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	leftover, err := env.userRepo.GetByID(guestUserID)
	if err != nil {
		t.Fatalf("guest lookup failed: %v", err)
	}
	if leftover != nil {
		t.Fatalf("orphaned guest account should be removed after claim")
	}
}
