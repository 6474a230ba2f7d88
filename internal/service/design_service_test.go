package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/gateway/imagegen"
	"github.com/teelab-next/internal/queue"
)

type fakeImageGen struct {
	calls int
	err   error
}

func (f *fakeImageGen) Generate(ctx context.Context, prompt, style string) (*imagegen.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &imagegen.Result{
		ImageURL:      fmt.Sprintf("https://cdn.example.com/tmp/%d.png", f.calls),
		RevisedPrompt: "revised: " + prompt,
	}, nil
}

type fakeArchiver struct {
	calls int
}

func (f *fakeArchiver) Archive(ctx context.Context, sourceURL, key string) (string, error) {
	f.calls++
	return "https://storage.example.com/" + key, nil
}

func newDesignTestService(env *testEnv, t *testing.T) (*DesignService, *fakeImageGen, *fakeArchiver) {
	t.Helper()

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	gen := &fakeImageGen{}
	archiver := &fakeArchiver{}
	svc := NewDesignService(env.orderRepo, env.designRepo, env.analyticsRepo, gen, archiver, queueClient)
	return svc, gen, archiver
}

func TestGenerateAuthedEnforcesTierLimit(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "maker@example.com")
	svc, gen, _ := newDesignTestService(env, t)

	preview, err := env.previewService().CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Tier:      constants.DesignTierBasic,
	})
	if err != nil {
		t.Fatalf("create preview failed: %v", err)
	}
	orderID := preview.Order.ID

	first, err := svc.GenerateAuthed(context.Background(), user.ID, orderID, GenerateInput{Prompt: "sunset"})
	if err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	if first.OrderStatus != constants.OrderStatusDesignPending {
		t.Fatalf("status after generate want DESIGN_PENDING got %s", first.OrderStatus)
	}
	if first.RemainingDesigns != "1" {
		t.Fatalf("remaining want 1 got %s", first.RemainingDesigns)
	}

	second, err := svc.GenerateAuthed(context.Background(), user.ID, orderID, GenerateInput{Prompt: "ocean"})
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if second.RemainingDesigns != "0" {
		t.Fatalf("remaining want 0 got %s", second.RemainingDesigns)
	}

	if _, err := svc.GenerateAuthed(context.Background(), user.ID, orderID, GenerateInput{Prompt: "forest"}); !errors.Is(err, ErrDesignLimitReached) {
		t.Fatalf("third generate want ErrDesignLimitReached got %v", err)
	}
	if gen.calls != 2 {
		t.Fatalf("generator must not be called past the limit, calls=%d", gen.calls)
	}
}

func TestGenerateAuthedUnlimitedTier(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "maker@example.com")
	svc, _, _ := newDesignTestService(env, t)

	preview, err := env.previewService().CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Tier:      constants.DesignTierStudio,
	})
	if err != nil {
		t.Fatalf("create preview failed: %v", err)
	}

	for i := 0; i < 7; i++ {
		result, err := svc.GenerateAuthed(context.Background(), user.ID, preview.Order.ID, GenerateInput{Prompt: "variation"})
		if err != nil {
			t.Fatalf("generate %d failed: %v", i, err)
		}
		if result.RemainingDesigns != RemainingUnlimited {
			t.Fatalf("remaining want unlimited got %s", result.RemainingDesigns)
		}
	}
}

func TestGenerateOnPaidOrderRegressesStatus(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "maker@example.com")
	svc, _, _ := newDesignTestService(env, t)

	preview, err := env.previewService().CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Tier:      constants.DesignTierPlus,
	})
	if err != nil {
		t.Fatalf("create preview failed: %v", err)
	}
	env.setOrderStatus(t, preview.Order.ID, constants.OrderStatusPaid)

	result, err := svc.GenerateAuthed(context.Background(), user.ID, preview.Order.ID, GenerateInput{Prompt: "rework"})
	if err != nil {
		t.Fatalf("generate on paid order failed: %v", err)
	}
	if result.OrderStatus != constants.OrderStatusDesignPending {
		t.Fatalf("paid order should regress to DESIGN_PENDING, got %s", result.OrderStatus)
	}
}

func TestGenerateGuestRequiresValidToken(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	svc, _, _ := newDesignTestService(env, t)

	guest, err := env.previewService().CreateGuest(CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("guest preview failed: %v", err)
	}

	if _, err := svc.GenerateGuest(context.Background(), guest.OrderID, "bogus", GenerateInput{Prompt: "x"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("bad token want ErrOrderNotFound got %v", err)
	}
	if _, err := svc.GenerateGuest(context.Background(), guest.OrderID, "", GenerateInput{Prompt: "x"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("empty token want ErrOrderNotFound got %v", err)
	}

	result, err := svc.GenerateGuest(context.Background(), guest.OrderID, guest.GuestToken, GenerateInput{Prompt: "tiger"})
	if err != nil {
		t.Fatalf("guest generate failed: %v", err)
	}
	if result.Design.ID == 0 {
		t.Fatalf("design should be persisted")
	}

	// 游客不可在已支付订单上继续生成
	env.setOrderStatus(t, guest.OrderID, constants.OrderStatusPaid)
	_, err = svc.GenerateGuest(context.Background(), guest.OrderID, guest.GuestToken, GenerateInput{Prompt: "again"})
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("want PolicyError got %v", err)
	}
}

func TestApproveKeepsSingleApprovedDesign(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "maker@example.com")
	svc, _, _ := newDesignTestService(env, t)

	preview, err := env.previewService().CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Tier:      constants.DesignTierPlus,
	})
	if err != nil {
		t.Fatalf("create preview failed: %v", err)
	}
	orderID := preview.Order.ID

	first, err := svc.GenerateAuthed(context.Background(), user.ID, orderID, GenerateInput{Prompt: "one"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	second, err := svc.GenerateAuthed(context.Background(), user.ID, orderID, GenerateInput{Prompt: "two"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	// 未支付不可确认
	if _, err := svc.Approve(user.ID, first.Design.ID); err == nil {
		t.Fatalf("approve before payment should fail")
	}

	env.setOrderStatus(t, orderID, constants.OrderStatusPaid)
	if _, err := svc.Approve(user.ID, first.Design.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if env.reloadOrder(t, orderID).Status != constants.OrderStatusDesignApproved {
		t.Fatalf("order should move to DESIGN_APPROVED")
	}

	// 再次支付后改选另一设计，原确认被清除
	env.setOrderStatus(t, orderID, constants.OrderStatusPaid)
	if _, err := svc.Approve(user.ID, second.Design.ID); err != nil {
		t.Fatalf("approve second failed: %v", err)
	}

	count, err := env.designRepo.CountApprovedByOrder(orderID)
	if err != nil {
		t.Fatalf("count approved failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("order must keep exactly one approved design, got %d", count)
	}
	approved, err := env.designRepo.GetApprovedByOrder(orderID)
	if err != nil || approved == nil {
		t.Fatalf("approved design lookup failed: %v", err)
	}
	if approved.ID != second.Design.ID {
		t.Fatalf("approved design want %d got %d", second.Design.ID, approved.ID)
	}
}

func TestArchiveImageRewritesURLOnce(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "maker@example.com")
	svc, _, archiver := newDesignTestService(env, t)

	preview, err := env.previewService().CreateOrReuse(user.ID, CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("create preview failed: %v", err)
	}
	result, err := svc.GenerateAuthed(context.Background(), user.ID, preview.Order.ID, GenerateInput{Prompt: "wave"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	design := result.Design

	if err := svc.ArchiveImage(context.Background(), design.ID, design.ImageURL); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	archived, err := env.designRepo.GetByID(design.ID)
	if err != nil || archived == nil {
		t.Fatalf("design lookup failed: %v", err)
	}
	if archived.ImageURL == design.ImageURL {
		t.Fatalf("image url should be rewritten to the durable address")
	}

	// 源地址已不匹配时不再归档
	if err := svc.ArchiveImage(context.Background(), design.ID, design.ImageURL); err != nil {
		t.Fatalf("stale archive should be a no-op, got %v", err)
	}
	if archiver.calls != 1 {
		t.Fatalf("archiver should be called once, got %d", archiver.calls)
	}

	if err := svc.ArchiveImage(context.Background(), 99999, "x"); !errors.Is(err, ErrDesignNotFound) {
		t.Fatalf("missing design want ErrDesignNotFound got %v", err)
	}
}
