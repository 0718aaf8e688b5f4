package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaboard-app/ideaboard/internal/plans"
	"github.com/ideaboard-app/ideaboard/internal/users"
)

type fakePaymentStore struct {
	byExternalID map[string]*Payment
	insertErr    error
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{byExternalID: map[string]*Payment{}}
}

func (f *fakePaymentStore) Insert(_ context.Context, p *Payment) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if _, ok := f.byExternalID[p.ExternalPaymentID]; ok {
		return false, nil
	}
	f.byExternalID[p.ExternalPaymentID] = p
	return true, nil
}

func (f *fakePaymentStore) ListByUser(context.Context, uuid.UUID, int, int) ([]*Payment, error) {
	return nil, nil
}

func (f *fakePaymentStore) CountByUser(context.Context, uuid.UUID) (int64, error) {
	return int64(len(f.byExternalID)), nil
}

type fakeSubscriptionStore struct {
	byUser  map[uuid.UUID]*Subscription
	upserts int
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{byUser: map[uuid.UUID]*Subscription{}}
}

func (f *fakeSubscriptionStore) GetActiveByUser(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, ok := f.byUser[userID]
	if !ok || sub.Status != StatusActive {
		return nil, nil
	}
	return sub, nil
}

func (f *fakeSubscriptionStore) UpsertActive(_ context.Context, sub *Subscription) error {
	f.upserts++
	f.byUser[sub.UserID] = sub
	return nil
}

func (f *fakeSubscriptionStore) Cancel(_ context.Context, userID uuid.UUID) (bool, error) {
	sub, ok := f.byUser[userID]
	if !ok || sub.Status != StatusActive {
		return false, nil
	}
	sub.Status = StatusCanceling
	return true, nil
}

type fakeCouponStore struct {
	redeemed []string
}

func (f *fakeCouponStore) GetByCode(context.Context, string) (*Coupon, error) { return nil, nil }

func (f *fakeCouponStore) Redeem(_ context.Context, code string, _ time.Time) (bool, error) {
	f.redeemed = append(f.redeemed, code)
	return true, nil
}

type fakeProfiles struct {
	profiles map[uuid.UUID]*users.Profile
	resets   []uuid.UUID
}

func newFakeProfiles(profiles ...*users.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[uuid.UUID]*users.Profile{}}
	for _, p := range profiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) Create(_ context.Context, p *users.Profile) error {
	f.profiles[p.ID] = p
	return nil
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*users.Profile, error) {
	return f.profiles[id], nil
}

func (f *fakeProfiles) GetByEmail(_ context.Context, email string) (*users.Profile, error) {
	for _, p := range f.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeProfiles) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	p, _ := f.GetByEmail(ctx, email)
	return p != nil, nil
}

func (f *fakeProfiles) ConsumeGeneration(_ context.Context, id uuid.UUID, limit int, now time.Time) (int, error) {
	p, ok := f.profiles[id]
	if !ok {
		return 0, users.ErrQuotaConsumed
	}
	reset := p.LastGenerationReset == nil ||
		p.LastGenerationReset.UTC().Month() != now.UTC().Month() ||
		p.LastGenerationReset.UTC().Year() != now.UTC().Year()
	if !reset && p.GenerationCount >= limit {
		return 0, users.ErrQuotaConsumed
	}
	if reset {
		p.GenerationCount = 1
		ts := now
		p.LastGenerationReset = &ts
	} else {
		p.GenerationCount++
	}
	return p.GenerationCount, nil
}

func (f *fakeProfiles) ResetUsage(_ context.Context, id uuid.UUID, now time.Time) error {
	f.resets = append(f.resets, id)
	if p, ok := f.profiles[id]; ok {
		p.GenerationCount = 0
		ts := now
		p.LastGenerationReset = &ts
	}
	return nil
}

type fakeNotifier struct {
	captured []string
	failed   []string
}

func (f *fakeNotifier) PaymentCaptured(email, plan string, amountPaise int64, currency string) {
	f.captured = append(f.captured, email)
}

func (f *fakeNotifier) PaymentFailed(email string) {
	f.failed = append(f.failed, email)
}

const secret = "test-webhook-secret"

func newTestReconciler(profiles *fakeProfiles) (*Reconciler, *fakePaymentStore, *fakeSubscriptionStore, *fakeCouponStore, *fakeNotifier) {
	payments := newFakePaymentStore()
	subs := newFakeSubscriptionStore()
	coupons := &fakeCouponStore{}
	notifier := &fakeNotifier{}
	return NewReconciler(secret, payments, subs, coupons, profiles, notifier), payments, subs, coupons, notifier
}

func testProfile() *users.Profile {
	ts := time.Now().Add(-time.Hour)
	return &users.Profile{
		ID:                  uuid.New(),
		Email:               "u@example.com",
		GenerationCount:     4,
		LastGenerationReset: &ts,
	}
}

func TestHandleWebhook_CapturedPayment(t *testing.T) {
	profile := testProfile()
	rec, payments, subs, _, notifier := newTestReconciler(newFakeProfiles(profile))

	body := capturedBody(profile.ID, "premium", "pay_123")
	err := rec.HandleWebhook(context.Background(), body, sign(body, secret))
	require.NoError(t, err)

	require.Contains(t, payments.byExternalID, "pay_123")
	assert.Equal(t, PaymentCaptured, payments.byExternalID["pay_123"].Status)

	sub := subs.byUser[profile.ID]
	require.NotNil(t, sub)
	assert.Equal(t, plans.Premium, sub.PlanID)
	assert.Equal(t, StatusActive, sub.Status)
	assert.True(t, sub.CurrentPeriodEnd.After(sub.CurrentPeriodStart))

	assert.Equal(t, 0, profile.GenerationCount, "usage must reset on capture")
	assert.Equal(t, []string{"u@example.com"}, notifier.captured)
}

func TestHandleWebhook_DuplicateDeliveryIsNoOp(t *testing.T) {
	profile := testProfile()
	fp := newFakeProfiles(profile)
	rec, payments, subs, _, _ := newTestReconciler(fp)

	body := capturedBody(profile.ID, "premium", "pay_123")
	sig := sign(body, secret)

	require.NoError(t, rec.HandleWebhook(context.Background(), body, sig))

	// Simulate a generation between the two deliveries.
	profile.GenerationCount = 1

	require.NoError(t, rec.HandleWebhook(context.Background(), body, sig))

	assert.Len(t, payments.byExternalID, 1, "exactly one payment record")
	assert.Equal(t, 1, subs.upserts, "subscription mutated once")
	assert.Len(t, fp.resets, 1, "usage reset once")
	assert.Equal(t, 1, profile.GenerationCount, "second delivery must not undo usage")
}

func TestHandleWebhook_InvalidSignatureMutatesNothing(t *testing.T) {
	profile := testProfile()
	fp := newFakeProfiles(profile)
	rec, payments, subs, _, notifier := newTestReconciler(fp)

	body := capturedBody(profile.ID, "premium", "pay_123")
	err := rec.HandleWebhook(context.Background(), body, sign(body, "wrong-secret"))

	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, payments.byExternalID)
	assert.Empty(t, subs.byUser)
	assert.Empty(t, fp.resets)
	assert.Empty(t, notifier.captured)
}

func TestHandleWebhook_UnknownEventAcked(t *testing.T) {
	rec, payments, subs, _, _ := newTestReconciler(newFakeProfiles())

	body := []byte(`{"event":"refund.processed","payload":{"payment":{"entity":{"id":"rf_1"}}}}`)
	err := rec.HandleWebhook(context.Background(), body, sign(body, secret))

	require.NoError(t, err)
	assert.Empty(t, payments.byExternalID)
	assert.Empty(t, subs.byUser)
}

func TestHandleWebhook_MissingMetadataAckedWithoutMutation(t *testing.T) {
	rec, payments, subs, _, _ := newTestReconciler(newFakeProfiles())

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_x","notes":{}}}}}`)
	err := rec.HandleWebhook(context.Background(), body, sign(body, secret))

	require.NoError(t, err)
	assert.Empty(t, payments.byExternalID)
	assert.Empty(t, subs.byUser)
}

func TestHandleWebhook_FailedPaymentRecordsOnly(t *testing.T) {
	profile := testProfile()
	fp := newFakeProfiles(profile)
	rec, payments, subs, _, notifier := newTestReconciler(fp)

	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_f","amount":9900,"currency":"INR","notes":{"user_id":"` + profile.ID.String() + `","plan_id":"basic"}}}}}`)
	err := rec.HandleWebhook(context.Background(), body, sign(body, secret))

	require.NoError(t, err)
	require.Contains(t, payments.byExternalID, "pay_f")
	assert.Equal(t, PaymentFailed, payments.byExternalID["pay_f"].Status)
	assert.Empty(t, subs.byUser, "failed payment must not touch the subscription")
	assert.Empty(t, fp.resets, "failed payment must not reset usage")
	assert.Equal(t, []string{"u@example.com"}, notifier.failed)
}

func TestHandleWebhook_PersistenceErrorPropagates(t *testing.T) {
	profile := testProfile()
	rec, payments, _, _, _ := newTestReconciler(newFakeProfiles(profile))
	payments.insertErr = assert.AnError

	body := capturedBody(profile.ID, "basic", "pay_err")
	err := rec.HandleWebhook(context.Background(), body, sign(body, secret))

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}

func TestHandleWebhook_CouponRedeemedOnCapture(t *testing.T) {
	profile := testProfile()
	rec, _, _, coupons, _ := newTestReconciler(newFakeProfiles(profile))

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_c","amount":100,"currency":"INR","notes":{"user_id":"` + profile.ID.String() + `","plan_id":"basic","coupon_code":"LAUNCH20"}}}}}`)
	require.NoError(t, rec.HandleWebhook(context.Background(), body, sign(body, secret)))

	assert.Equal(t, []string{"LAUNCH20"}, coupons.redeemed)
}

func TestHandleWebhook_UnparseableSignedBodyAcked(t *testing.T) {
	rec, _, _, _, _ := newTestReconciler(newFakeProfiles())

	body := []byte(`{broken`)
	err := rec.HandleWebhook(context.Background(), body, sign(body, secret))
	assert.NoError(t, err)
}
