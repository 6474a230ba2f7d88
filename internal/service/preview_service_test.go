package service

import (
	"errors"
	"testing"
	"time"

	"github.com/teelab-next/internal/constants"
	"github.com/teelab-next/internal/models"
	"github.com/teelab-next/internal/queue"
)

type fakeTimeoutScheduler struct {
	payloads []queue.OrderTimeoutCancelPayload
	delays   []time.Duration
}

func (f *fakeTimeoutScheduler) EnqueueOrderTimeoutCancel(payload queue.OrderTimeoutCancelPayload, delay time.Duration) error {
	f.payloads = append(f.payloads, payload)
	f.delays = append(f.delays, delay)
	return nil
}

func TestCreateOrReuseReusesPendingPreview(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "buyer@example.com")
	svc := env.previewService()

	first, err := svc.CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Color:     "Black",
		Size:      "M",
		Tier:      constants.DesignTierBasic,
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("first preview failed: %v", err)
	}
	if first.Reused {
		t.Fatalf("first preview should not be reused")
	}
	if first.Order.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("status want PENDING_PAYMENT got %s", first.Order.Status)
	}
	if first.Order.MaxDesigns != 2 {
		t.Fatalf("basic tier max designs want 2 got %d", first.Order.MaxDesigns)
	}

	second, err := svc.CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Color:     "White",
		Size:      "L",
		Tier:      constants.DesignTierPlus,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("second preview failed: %v", err)
	}
	if !second.Reused {
		t.Fatalf("second preview should reuse the pending order")
	}
	if second.Order.ID != first.Order.ID {
		t.Fatalf("reused order id want %d got %d", first.Order.ID, second.Order.ID)
	}

	var orderCount int64
	if err := env.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("reuse must not create a second order, count=%d", orderCount)
	}

	reloaded := env.reloadOrder(t, first.Order.ID)
	if reloaded.DesignTier != constants.DesignTierPlus {
		t.Fatalf("tier want PLUS got %s", reloaded.DesignTier)
	}
	if reloaded.MaxDesigns != 5 {
		t.Fatalf("plus tier max designs want 5 got %d", reloaded.MaxDesigns)
	}
	if len(reloaded.Items) != 1 {
		t.Fatalf("preview order should keep a single item, got %d", len(reloaded.Items))
	}
	item := reloaded.Items[0]
	if item.Color != "White" || item.Size != "L" || item.Quantity != 2 {
		t.Fatalf("item not rewritten: %+v", item)
	}
	// 19.90 + 5.00 加价，数量 2
	if reloaded.TotalAmount.String() != "49.8" {
		t.Fatalf("total want 49.8 got %s", reloaded.TotalAmount.String())
	}
}

func TestCreateOrReuseRejectsTierDowngrade(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "buyer@example.com")
	svc := env.previewService()

	first, err := svc.CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Tier:      constants.DesignTierPlus,
	})
	if err != nil {
		t.Fatalf("create preview failed: %v", err)
	}
	if err := env.db.Model(&models.Order{}).Where("id = ?", first.Order.ID).
		Update("designs_generated", 3).Error; err != nil {
		t.Fatalf("seed generated count failed: %v", err)
	}

	_, err = svc.CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Tier:      constants.DesignTierBasic,
	})
	if !errors.Is(err, ErrTierDowngrade) {
		t.Fatalf("want ErrTierDowngrade got %v", err)
	}

	// 切到不限档位不受生成数限制
	result, err := svc.CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Tier:      constants.DesignTierStudio,
	})
	if err != nil {
		t.Fatalf("upgrade to studio failed: %v", err)
	}
	if result.Order.MaxDesigns != constants.TierDesignsUnlimited {
		t.Fatalf("studio max designs want -1 got %d", result.Order.MaxDesigns)
	}
}

func TestCreateOrReuseFallsBackToFirstOption(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "buyer@example.com")
	svc := env.previewService()

	result, err := svc.CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Color:     "Chartreuse",
		Size:      "XXXL",
		Tier:      "mystery",
		Quantity:  0,
	})
	if err != nil {
		t.Fatalf("create preview failed: %v", err)
	}
	item := result.Order.Items[0]
	if item.Color != "Black" || item.Size != "M" {
		t.Fatalf("unknown options should fall back to first, got %s/%s", item.Color, item.Size)
	}
	if item.Quantity != 1 {
		t.Fatalf("quantity should default to 1, got %d", item.Quantity)
	}
	if result.Order.DesignTier != constants.DesignTierBasic {
		t.Fatalf("unknown tier should fall back to BASIC, got %s", result.Order.DesignTier)
	}
}

func TestCreateGuestIssuesOneTimeToken(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	svc := env.previewService()

	result, err := svc.CreateGuest(CreatePreviewInput{
		ProductID: product.ID,
		Tier:      constants.DesignTierStudio,
	})
	if err != nil {
		t.Fatalf("guest preview failed: %v", err)
	}
	if result.GuestToken == "" {
		t.Fatalf("guest token should be issued")
	}
	if result.MaxDesigns != constants.TierDesignsUnlimited {
		t.Fatalf("studio tier max designs want -1 got %d", result.MaxDesigns)
	}

	order := env.reloadOrder(t, result.OrderID)
	if order.PreviewGuestToken == nil || *order.PreviewGuestToken != result.GuestToken {
		t.Fatalf("order should carry the issued guest token")
	}

	guest, err := env.userRepo.GetByID(order.UserID)
	if err != nil || guest == nil {
		t.Fatalf("guest user lookup failed: %v", err)
	}
	if !guest.IsGuest {
		t.Fatalf("order owner should be a guest placeholder account")
	}
}

func TestCreateSchedulesTimeoutCancel(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "buyer@example.com")
	scheduler := &fakeTimeoutScheduler{}
	svc := NewPreviewService(env.orderRepo, env.productRepo, env.userRepo, env.analyticsRepo, scheduler, 60)

	created, err := svc.CreateOrReuse(user.ID, CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("create preview failed: %v", err)
	}
	if len(scheduler.payloads) != 1 {
		t.Fatalf("create should schedule one timeout cancel, got %d", len(scheduler.payloads))
	}
	if scheduler.payloads[0].OrderID != created.Order.ID {
		t.Fatalf("scheduled order id want %d got %d", created.Order.ID, scheduler.payloads[0].OrderID)
	}
	if scheduler.delays[0] <= 0 || scheduler.delays[0] > time.Hour {
		t.Fatalf("delay should match the preview expiry, got %v", scheduler.delays[0])
	}

	// 复用不重复排任务
	reused, err := svc.CreateOrReuse(user.ID, CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("reuse preview failed: %v", err)
	}
	if !reused.Reused {
		t.Fatalf("second call should reuse the pending preview")
	}
	if len(scheduler.payloads) != 1 {
		t.Fatalf("reuse must not schedule another cancel, got %d", len(scheduler.payloads))
	}

	// 游客订单同样有过期任务
	guest, err := svc.CreateGuest(CreatePreviewInput{ProductID: product.ID})
	if err != nil {
		t.Fatalf("guest preview failed: %v", err)
	}
	if len(scheduler.payloads) != 2 || scheduler.payloads[1].OrderID != guest.OrderID {
		t.Fatalf("guest create should schedule its own timeout cancel")
	}
}

func TestUpdateVariantOnlyForUnpaidPreview(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t)
	user := env.createUser(t, "buyer@example.com")
	svc := env.previewService()

	result, err := svc.CreateOrReuse(user.ID, CreatePreviewInput{
		ProductID: product.ID,
		Color:     "Black",
		Size:      "M",
	})
	if err != nil {
		t.Fatalf("create preview failed: %v", err)
	}

	updated, err := svc.UpdateVariant(user.ID, result.Order.ID, "White", "L")
	if err != nil {
		t.Fatalf("update variant failed: %v", err)
	}
	if updated.Items[0].Color != "White" || updated.Items[0].Size != "L" {
		t.Fatalf("variant not updated: %+v", updated.Items[0])
	}

	env.setOrderStatus(t, result.Order.ID, constants.OrderStatusPaid)
	_, err = svc.UpdateVariant(user.ID, result.Order.ID, "Black", "M")
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("want PolicyError got %v", err)
	}
	if policyErr.Message != "Only unpaid preview orders can be modified" {
		t.Fatalf("unexpected message: %s", policyErr.Message)
	}

	// 他人订单不可见
	stranger := env.createUser(t, "other@example.com")
	if _, err := svc.UpdateVariant(stranger.ID, result.Order.ID, "Black", "M"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("stranger should get ErrOrderNotFound, got %v", err)
	}
}
