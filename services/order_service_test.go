package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"ticketshop/models"
	"ticketshop/repository"
	"ticketshop/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- Mock Repositories ---

// mockOrderRepo mirrors the conditional-update semantics of the real
// repository: ConfirmPaid flips status under a mutex so concurrent callers
// resolve to exactly one winner.
type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *order
	m.orders[order.ID] = &clone
	return nil
}

func (m *mockOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (m *mockOrderRepo) FindLatestByChannel(_ context.Context, channelID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Order
	for _, order := range m.orders {
		if order.ChannelID != channelID {
			continue
		}
		if latest == nil || order.CreatedAt.After(latest.CreatedAt) {
			latest = order
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *latest
	return &clone, nil
}

func (m *mockOrderRepo) UpdatePaymentLink(_ context.Context, id uuid.UUID, method, provider, url, transactionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return false, nil
	}
	order.PaymentMethod = &method
	order.PaymentProvider = &provider
	order.PaymentURL = &url
	order.TransactionID = &transactionID
	return true, nil
}

func (m *mockOrderRepo) ConfirmPaid(_ context.Context, id uuid.UUID, conf repository.PaymentConfirmation) (*models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, false, gorm.ErrRecordNotFound
	}
	if order.Status == models.OrderStatusPaid {
		clone := *order
		return &clone, false, nil
	}

	now := time.Now().UTC()
	order.Status = models.OrderStatusPaid
	order.PaymentMethod = &conf.Method
	order.PaymentProvider = &conf.Provider
	order.TransactionID = &conf.TransactionID
	order.PaidAmount = &conf.PaidAmount
	order.PaidAt = &now
	if order.CouponCode != nil && !order.CouponUsageRecorded {
		order.CouponUsageRecorded = true
	}
	clone := *order
	return &clone, true, nil
}

func (m *mockOrderRepo) IncrementForceClose(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	order.ForceCloseConfirmations++
	return order.ForceCloseConfirmations, nil
}

var _ repository.OrderRepository = (*mockOrderRepo)(nil)

// mockPendingRepo is a map-backed stand-in for the Redis association store.
type mockPendingRepo struct {
	mu      sync.Mutex
	pending map[string]models.CouponSnapshot
	getErr  error
}

func newMockPendingRepo() *mockPendingRepo {
	return &mockPendingRepo{pending: make(map[string]models.CouponSnapshot)}
}

func (m *mockPendingRepo) Set(_ context.Context, channelID string, snap models.CouponSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[channelID] = snap
	return nil
}

func (m *mockPendingRepo) Get(_ context.Context, channelID string) (*models.CouponSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	snap, ok := m.pending[channelID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *mockPendingRepo) Clear(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, channelID)
	return nil
}

var _ repository.PendingCouponRepository = (*mockPendingRepo)(nil)

// --- Fake Gateways ---

type fakeStripeGateway struct {
	err error
}

func (f *fakeStripeGateway) CreateCheckoutLink(order *models.Order, _ string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return "https://checkout.stripe.test/" + order.ID.String(), "cs_test_" + order.ID.String()[:8], nil
}

func (f *fakeStripeGateway) ParseWebhook(_ *http.Request) (stripe.Event, error) {
	return stripe.Event{}, errors.New("not used in service tests")
}

type fakeCryptoGateway struct {
	err error
}

func (f *fakeCryptoGateway) RequestPaymentLink(_ context.Context, orderID string, _ float64, _, _ string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return "https://pay.crypto.test/" + orderID, "inv_" + orderID[:8], nil
}

func (f *fakeCryptoGateway) VerifySignature(_ []byte, _ string) bool { return true }

type recordingProducer struct {
	mu     sync.Mutex
	events []models.OrderPaidEvent
}

func (p *recordingProducer) PublishOrderPaid(event models.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fakeInvoiceRenderer struct{}

func (f *fakeInvoiceRenderer) Render(_ context.Context, order *models.Order) (string, error) {
	return "https://invoices.test/" + order.ID.String() + ".pdf", nil
}

// --- Fixture ---

type orderServiceFixture struct {
	svc         services.OrderService
	orderRepo   *mockOrderRepo
	couponRepo  *mockCouponRepo
	pendingRepo *mockPendingRepo
	producer    *recordingProducer
	notifier    *recordingNotifier
	stripe      *fakeStripeGateway
	crypto      *fakeCryptoGateway
}

func newOrderServiceFixture() *orderServiceFixture {
	f := &orderServiceFixture{
		orderRepo:   newMockOrderRepo(),
		couponRepo:  newMockCouponRepo(),
		pendingRepo: newMockPendingRepo(),
		producer:    &recordingProducer{},
		notifier:    &recordingNotifier{},
		stripe:      &fakeStripeGateway{},
		crypto:      &fakeCryptoGateway{},
	}
	logger, _ := zap.NewDevelopment()
	f.svc = services.NewOrderService(
		f.orderRepo,
		f.couponRepo,
		f.pendingRepo,
		f.stripe,
		f.crypto,
		f.producer,
		nil, "",
		&fakeInvoiceRenderer{},
		f.notifier,
		"https://shop.test",
		logger,
	)
	return f
}

func (f *orderServiceFixture) addCoupon(t *testing.T, code string, kind models.CouponKind, value float64, maxUses int) {
	t.Helper()
	err := f.couponRepo.Create(context.Background(), &models.Coupon{
		Code:    code,
		Kind:    kind,
		Value:   value,
		MaxUses: maxUses,
		Active:  true,
	})
	require.NoError(t, err)
}

func (f *orderServiceFixture) createOrder(t *testing.T, channelID string, price float64) *models.Order {
	t.Helper()
	order, svcErr := f.svc.CreateOrder(context.Background(), channelID, &models.CreateOrderRequest{
		BuyerID: "buyer-1",
		Product: models.ProductSelection{ID: "prod-1", Name: "VIP Ticket", Price: price},
	})
	require.Nil(t, svcErr)
	return order
}

func paidNotice(orderID string) models.PaymentNotice {
	return models.PaymentNotice{
		OrderID:       orderID,
		Paid:          true,
		TransactionID: "tx-1",
		PaidAmount:    70,
		Method:        "stripe",
		Provider:      "stripe",
	}
}

// --- SubmitCoupon / CreateOrder ---

func TestSubmitCoupon_UnknownCode(t *testing.T) {
	f := newOrderServiceFixture()

	_, svcErr := f.svc.SubmitCoupon(context.Background(), "chan-1", "GHOST")
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
}

func TestSubmitCoupon_OverwritesEarlierSelection(t *testing.T) {
	f := newOrderServiceFixture()
	f.addCoupon(t, "FIRST", models.CouponKindFixed, 10, 0)
	f.addCoupon(t, "SECOND", models.CouponKindFixed, 20, 0)

	_, svcErr := f.svc.SubmitCoupon(context.Background(), "chan-1", "FIRST")
	require.Nil(t, svcErr)
	_, svcErr = f.svc.SubmitCoupon(context.Background(), "chan-1", "SECOND")
	require.Nil(t, svcErr)

	order := f.createOrder(t, "chan-1", 100)
	require.NotNil(t, order.Coupon())
	assert.Equal(t, "SECOND", order.Coupon().Code)
	assert.Equal(t, 80.0, order.TotalAmount)
}

func TestCreateOrder_ConsumesPendingCoupon(t *testing.T) {
	f := newOrderServiceFixture()
	f.addCoupon(t, "SAVE30", models.CouponKindFixed, 30, 0)

	_, svcErr := f.svc.SubmitCoupon(context.Background(), "chan-1", "save30")
	require.Nil(t, svcErr)

	order := f.createOrder(t, "chan-1", 100)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 100.0, order.OriginalAmount)
	assert.Equal(t, 30.0, order.DiscountAmount)
	assert.Equal(t, 70.0, order.TotalAmount)
	require.NotNil(t, order.Coupon())
	assert.Equal(t, "SAVE30", order.Coupon().Code)

	// The association is consumed; the next order in the same channel is
	// full price.
	second := f.createOrder(t, "chan-1", 100)
	assert.Nil(t, second.Coupon())
	assert.Equal(t, 100.0, second.TotalAmount)
}

func TestCreateOrder_NoPendingCoupon(t *testing.T) {
	f := newOrderServiceFixture()

	order := f.createOrder(t, "chan-1", 49.99)
	assert.Nil(t, order.Coupon())
	assert.Equal(t, 49.99, order.TotalAmount)
	assert.Equal(t, 0.0, order.DiscountAmount)
}

func TestCreateOrder_PendingCouponWentInvalid(t *testing.T) {
	f := newOrderServiceFixture()
	f.addCoupon(t, "BRIEF", models.CouponKindPercent, 50, 0)

	_, svcErr := f.svc.SubmitCoupon(context.Background(), "chan-1", "BRIEF")
	require.Nil(t, svcErr)

	removed, err := f.couponRepo.Remove(context.Background(), "BRIEF")
	require.NoError(t, err)
	require.True(t, removed)

	// Dropped silently: the order is created at full price.
	order := f.createOrder(t, "chan-1", 100)
	assert.Nil(t, order.Coupon())
	assert.Equal(t, 100.0, order.TotalAmount)
}

func TestCreateOrder_PendingStoreUnavailable(t *testing.T) {
	f := newOrderServiceFixture()
	f.pendingRepo.getErr = errors.New("connection refused")

	_, svcErr := f.svc.CreateOrder(context.Background(), "chan-1", &models.CreateOrderRequest{
		BuyerID: "buyer-1",
		Product: models.ProductSelection{ID: "prod-1", Name: "VIP Ticket", Price: 100},
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, 500, svcErr.StatusCode)
}

func TestCreateOrder_SnapshotSurvivesLedgerEdit(t *testing.T) {
	f := newOrderServiceFixture()
	f.addCoupon(t, "LOCKED", models.CouponKindFixed, 25, 0)

	_, svcErr := f.svc.SubmitCoupon(context.Background(), "chan-1", "LOCKED")
	require.Nil(t, svcErr)
	order := f.createOrder(t, "chan-1", 100)
	require.NotNil(t, order.Coupon())
	assert.Equal(t, 25.0, order.Coupon().Value)

	// Removing the coupon afterwards does not alter the stored order.
	_, _ = f.couponRepo.Remove(context.Background(), "LOCKED")
	stored, err := f.orderRepo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 75.0, stored.TotalAmount)
	require.NotNil(t, stored.Coupon())
	assert.Equal(t, "LOCKED", stored.Coupon().Code)
}

// --- LatestOrder ---

func TestLatestOrder(t *testing.T) {
	f := newOrderServiceFixture()

	_, svcErr := f.svc.LatestOrder(context.Background(), "chan-1")
	require.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)

	created := f.createOrder(t, "chan-1", 10)
	latest, svcErr := f.svc.LatestOrder(context.Background(), "chan-1")
	require.Nil(t, svcErr)
	assert.Equal(t, created.ID, latest.ID)
}

// --- IssuePaymentLink ---

func TestIssuePaymentLink_Stripe(t *testing.T) {
	f := newOrderServiceFixture()
	order := f.createOrder(t, "chan-1", 100)

	updated, svcErr := f.svc.IssuePaymentLink(context.Background(), order.ID, models.PaymentMethodStripe)
	require.Nil(t, svcErr)
	require.NotNil(t, updated.PaymentURL)
	assert.Contains(t, *updated.PaymentURL, "checkout.stripe.test")
	assert.Equal(t, "stripe", *updated.PaymentProvider)
	assert.Equal(t, models.OrderStatusPending, updated.Status)
}

func TestIssuePaymentLink_Crypto(t *testing.T) {
	f := newOrderServiceFixture()
	order := f.createOrder(t, "chan-1", 100)

	updated, svcErr := f.svc.IssuePaymentLink(context.Background(), order.ID, models.PaymentMethodCrypto)
	require.Nil(t, svcErr)
	require.NotNil(t, updated.PaymentURL)
	assert.Contains(t, *updated.PaymentURL, "pay.crypto.test")
	assert.Equal(t, "cryptopay", *updated.PaymentProvider)
}

func TestIssuePaymentLink_ReissueOverwrites(t *testing.T) {
	f := newOrderServiceFixture()
	order := f.createOrder(t, "chan-1", 100)

	_, svcErr := f.svc.IssuePaymentLink(context.Background(), order.ID, models.PaymentMethodStripe)
	require.Nil(t, svcErr)
	updated, svcErr := f.svc.IssuePaymentLink(context.Background(), order.ID, models.PaymentMethodCrypto)
	require.Nil(t, svcErr)

	assert.Equal(t, "cryptopay", *updated.PaymentProvider)
	assert.Equal(t, models.OrderStatusPending, updated.Status)
}

func TestIssuePaymentLink_ProviderFailure(t *testing.T) {
	f := newOrderServiceFixture()
	f.stripe.err = errors.New("stripe is down")
	order := f.createOrder(t, "chan-1", 100)

	_, svcErr := f.svc.IssuePaymentLink(context.Background(), order.ID, models.PaymentMethodStripe)
	require.NotNil(t, svcErr)
	assert.Equal(t, 502, svcErr.StatusCode)

	// No link recorded, order untouched.
	stored, err := f.orderRepo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.PaymentURL)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestIssuePaymentLink_UnknownOrder(t *testing.T) {
	f := newOrderServiceFixture()

	_, svcErr := f.svc.IssuePaymentLink(context.Background(), uuid.New(), models.PaymentMethodStripe)
	require.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
}

// --- ConfirmPayment ---

func TestConfirmPayment_TransitionsOnce(t *testing.T) {
	f := newOrderServiceFixture()
	order := f.createOrder(t, "chan-1", 70)

	confirmed, transitioned := f.svc.ConfirmPayment(context.Background(), paidNotice(order.ID.String()))
	require.True(t, transitioned)
	assert.Equal(t, models.OrderStatusPaid, confirmed.Status)
	require.NotNil(t, confirmed.PaidAt)

	// Effects are dispatched off the confirmation path.
	assert.Eventually(t, func() bool {
		return f.producer.count() == 1 && f.notifier.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestConfirmPayment_DuplicateIsNoOp(t *testing.T) {
	f := newOrderServiceFixture()
	order := f.createOrder(t, "chan-1", 70)

	_, transitioned := f.svc.ConfirmPayment(context.Background(), paidNotice(order.ID.String()))
	require.True(t, transitioned)

	again, transitioned := f.svc.ConfirmPayment(context.Background(), paidNotice(order.ID.String()))
	assert.False(t, transitioned)
	assert.Equal(t, models.OrderStatusPaid, again.Status)

	// No second event, no second notification.
	assert.Eventually(t, func() bool {
		return f.producer.count() == 1 && f.notifier.count() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool {
		return f.producer.count() > 1 || f.notifier.count() > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestConfirmPayment_UnknownOrder(t *testing.T) {
	f := newOrderServiceFixture()

	order, transitioned := f.svc.ConfirmPayment(context.Background(), paidNotice(uuid.NewString()))
	assert.Nil(t, order)
	assert.False(t, transitioned)
	assert.Equal(t, 0, f.producer.count())
}

func TestConfirmPayment_MalformedOrderID(t *testing.T) {
	f := newOrderServiceFixture()

	order, transitioned := f.svc.ConfirmPayment(context.Background(), paidNotice("not-a-uuid"))
	assert.Nil(t, order)
	assert.False(t, transitioned)
}

func TestConfirmPayment_NonPaidNotice(t *testing.T) {
	f := newOrderServiceFixture()
	order := f.createOrder(t, "chan-1", 70)

	notice := paidNotice(order.ID.String())
	notice.Paid = false
	_, transitioned := f.svc.ConfirmPayment(context.Background(), notice)
	assert.False(t, transitioned)

	stored, err := f.orderRepo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestConfirmPayment_RecordsCouponUse(t *testing.T) {
	f := newOrderServiceFixture()
	f.addCoupon(t, "ONCE", models.CouponKindFixed, 10, 5)

	_, svcErr := f.svc.SubmitCoupon(context.Background(), "chan-1", "ONCE")
	require.Nil(t, svcErr)
	order := f.createOrder(t, "chan-1", 100)

	_, transitioned := f.svc.ConfirmPayment(context.Background(), paidNotice(order.ID.String()))
	require.True(t, transitioned)
	assert.Equal(t, 1, f.couponRepo.uses("ONCE"))

	// A duplicate delivery never retries the increment.
	_, transitioned = f.svc.ConfirmPayment(context.Background(), paidNotice(order.ID.String()))
	assert.False(t, transitioned)
	assert.Equal(t, 1, f.couponRepo.uses("ONCE"))
}

func TestConfirmPayment_CouponExhaustedBeforeConfirmation(t *testing.T) {
	f := newOrderServiceFixture()
	f.addCoupon(t, "LAST", models.CouponKindFixed, 10, 1)

	_, svcErr := f.svc.SubmitCoupon(context.Background(), "chan-1", "LAST")
	require.Nil(t, svcErr)
	order := f.createOrder(t, "chan-1", 100)

	// Another order burns the final use before this one is paid.
	recorded, err := f.couponRepo.RecordUse(context.Background(), "LAST")
	require.NoError(t, err)
	require.True(t, recorded)

	confirmed, transitioned := f.svc.ConfirmPayment(context.Background(), paidNotice(order.ID.String()))
	require.True(t, transitioned, "payment confirmation must not be blocked by the ledger")
	assert.Equal(t, models.OrderStatusPaid, confirmed.Status)
	assert.Equal(t, 1, f.couponRepo.uses("LAST"), "uses never exceeds max_uses")
}

func TestConfirmPayment_Concurrent(t *testing.T) {
	f := newOrderServiceFixture()
	f.addCoupon(t, "RACE", models.CouponKindFixed, 10, 0)

	_, svcErr := f.svc.SubmitCoupon(context.Background(), "chan-1", "RACE")
	require.Nil(t, svcErr)
	order := f.createOrder(t, "chan-1", 100)

	const deliveries = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			notice := paidNotice(order.ID.String())
			notice.TransactionID = fmt.Sprintf("tx-%d", n)
			_, transitioned := f.svc.ConfirmPayment(context.Background(), notice)
			if transitioned {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one delivery performs the transition")
	assert.Equal(t, 1, f.couponRepo.uses("RACE"))
	assert.Eventually(t, func() bool {
		return f.producer.count() == 1 && f.notifier.count() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool {
		return f.producer.count() > 1 || f.notifier.count() > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
}

// --- ForceClose ---

func TestForceClose(t *testing.T) {
	f := newOrderServiceFixture()
	order := f.createOrder(t, "chan-1", 100)

	count, closable, svcErr := f.svc.ForceClose(context.Background(), order.ID)
	require.Nil(t, svcErr)
	assert.Equal(t, 1, count)
	assert.False(t, closable)

	count, closable, svcErr = f.svc.ForceClose(context.Background(), order.ID)
	require.Nil(t, svcErr)
	assert.Equal(t, 2, count)
	assert.True(t, closable)
}

func TestForceClose_UnknownOrder(t *testing.T) {
	f := newOrderServiceFixture()

	_, _, svcErr := f.svc.ForceClose(context.Background(), uuid.New())
	require.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
}
