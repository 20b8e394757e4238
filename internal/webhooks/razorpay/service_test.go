package razorpaywebhook

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/trydo/wts-backend/internal/licenses"
	"github.com/trydo/wts-backend/internal/notifications"
	"github.com/trydo/wts-backend/internal/payments"
	"github.com/trydo/wts-backend/internal/users"
	"github.com/trydo/wts-backend/pkg/config"
	"github.com/trydo/wts-backend/pkg/db/dbtest"
	"github.com/trydo/wts-backend/pkg/db/models"
	"github.com/trydo/wts-backend/pkg/enums"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/mailer"
	"github.com/trydo/wts-backend/pkg/razorpay"
	"github.com/trydo/wts-backend/pkg/security"
)

const secret = "whsec_test"

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notifications.LicenseEmail
	err  error
}

func (f *fakeNotifier) SendLicense(_ context.Context, email notifications.LicenseEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, email)
	return f.err
}

func (f *fakeNotifier) emails() []notifications.LicenseEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifications.LicenseEmail(nil), f.sent...)
}

type memoryGuardStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryGuardStore() *memoryGuardStore {
	return &memoryGuardStore{keys: map[string]bool{}}
}

func (m *memoryGuardStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryGuardStore) InFlightKey(scope, id string) string {
	return "wts:in_flight:" + scope + ":" + id
}

func (m *memoryGuardStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type harness struct {
	db       *gorm.DB
	svc      *Service
	notifier *fakeNotifier
	store    *memoryGuardStore
}

func newHarness(t *testing.T, mutate ...func(*ServiceParams)) *harness {
	t.Helper()
	client, writer := dbtest.OpenWithWriter(t)
	db := client.DB()
	h := &harness{db: db, notifier: &fakeNotifier{}, store: newMemoryGuardStore()}

	g, err := NewInFlightGuard(h.store, time.Minute, GuardScope)
	require.NoError(t, err)

	params := ServiceParams{
		Secret:   secret,
		Payments: payments.NewRepository(db),
		Licenses: licenses.NewRepository(db),
		Users:    users.NewRepository(db),
		Writer:   writer,
		Guard:    g,
		Notifier: h.notifier,
	}
	for _, m := range mutate {
		m(&params)
	}
	h.svc, err = NewService(params)
	require.NoError(t, err)
	return h
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.svc.Wait(ctx))
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}

func capturedBody(id, email string) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"email":%q,"amount":49900,"currency":"INR","status":"captured","order_id":"order_9","method":"upi"}}}}`, id, email))
}

func TestReconcileCapturedPaymentCreatesLicenseAndUser(t *testing.T) {
	h := newHarness(t)
	body := capturedBody("pay_1", "a@x.com")

	out, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, out.Status)
	assert.Equal(t, "pay_1", out.PaymentID)
	assert.True(t, out.UserCreated)
	assert.Regexp(t, `^WTS-[A-HJ-NP-Z2-9]{5}-[A-HJ-NP-Z2-9]{5}-[A-HJ-NP-Z2-9]{5}-[A-HJ-NP-Z2-9]{5}$`, out.LicenseKey)

	var payment models.Payment
	require.NoError(t, h.db.First(&payment, "id = ?", "pay_1").Error)
	assert.Equal(t, int64(49900), payment.Amount)
	require.NotNil(t, payment.OrderID)
	assert.Equal(t, "order_9", *payment.OrderID)

	var license models.License
	require.NoError(t, h.db.First(&license, "payment_id = ?", "pay_1").Error)
	assert.Equal(t, out.LicenseKey, license.Key)
	assert.False(t, license.Activated)

	var user models.User
	require.NoError(t, h.db.First(&user, "email = ?", "a@x.com").Error)
	assert.False(t, user.Activated)
	require.NotNil(t, user.LicenseKey)
	assert.Equal(t, license.Key, *user.LicenseKey)
	require.NotNil(t, user.PasswordHash)

	h.wait(t)
	sent := h.notifier.emails()
	require.Len(t, sent, 1)
	assert.Equal(t, license.Key, sent[0].LicenseKey)
	require.NotEmpty(t, sent[0].TempPassword)
	ok, err := security.VerifyPassword(sent[0].TempPassword, *user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok, "emailed temporary password must match the stored hash")
}

func TestReconcileRedeliveryIsIdempotent(t *testing.T) {
	h := newHarness(t)
	body := capturedBody("pay_1", "a@x.com")
	sig := razorpay.Sign(body, secret)

	for i := 0; i < 5; i++ {
		out, err := h.svc.Reconcile(context.Background(), body, sig)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, StatusProcessed, out.Status)
		} else {
			assert.Equal(t, StatusDuplicate, out.Status)
		}
	}
	h.wait(t)

	assert.Equal(t, int64(1), h.count(t, &models.Payment{}))
	assert.Equal(t, int64(1), h.count(t, &models.License{}))
	assert.Equal(t, int64(1), h.count(t, &models.User{}))
	assert.Len(t, h.notifier.emails(), 1)
}

func TestReconcileConcurrentRedeliveries(t *testing.T) {
	h := newHarness(t)
	body := capturedBody("pay_1", "a@x.com")
	sig := razorpay.Sign(body, secret)

	var wg sync.WaitGroup
	var mu sync.Mutex
	statuses := map[string]int{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.svc.Reconcile(context.Background(), body, sig)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				statuses[string(pkgerrors.CodeOf(err))]++
				return
			}
			statuses[out.Status]++
		}()
	}
	wg.Wait()
	h.wait(t)

	assert.Equal(t, 1, statuses[StatusProcessed])
	assert.Equal(t, 10, statuses[StatusProcessed]+statuses[StatusDuplicate]+statuses[string(pkgerrors.CodeConflict)])
	assert.Equal(t, int64(1), h.count(t, &models.Payment{}))
	assert.Equal(t, int64(1), h.count(t, &models.License{}))
	assert.Equal(t, int64(1), h.count(t, &models.User{}))
}

func TestReconcileConcurrentDistinctPayments(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{"pay_1", "pay_2"} {
		body := capturedBody(id, "a@x.com")
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	h.wait(t)

	assert.Equal(t, int64(2), h.count(t, &models.Payment{}))
	assert.Equal(t, int64(2), h.count(t, &models.License{}))
	assert.Equal(t, int64(1), h.count(t, &models.User{}))
}

func TestReconcileRejectsTamperedDelivery(t *testing.T) {
	h := newHarness(t)
	body := capturedBody("pay_1", "a@x.com")
	sig := razorpay.Sign(body, secret)
	tampered := capturedBody("pay_1", "evil@x.com")

	cases := map[string]struct {
		body []byte
		sig  string
	}{
		"tampered body":   {tampered, sig},
		"wrong signature": {body, razorpay.Sign(body, "other")},
		"missing":         {body, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Reconcile(context.Background(), tc.body, tc.sig)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeInvalidSignature, pkgerrors.CodeOf(err))
		})
	}

	assert.Zero(t, h.count(t, &models.Payment{}))
	assert.Zero(t, h.count(t, &models.License{}))
	assert.Zero(t, h.count(t, &models.User{}))
}

func TestReconcileIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t)
	body := []byte(`{"event":"payment.authorized","payload":{"payment":{"entity":{"id":"pay_1","email":"a@x.com"}}}}`)

	out, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, out.Status)
	assert.Zero(t, h.count(t, &models.Payment{}))
}

func TestReconcileValidatesPayload(t *testing.T) {
	h := newHarness(t)
	for name, body := range map[string][]byte{
		"missing id": []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"email":"a@x.com"}}}}`),
		"bad json":   []byte(`{"event":`),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
		})
	}
	assert.Zero(t, h.count(t, &models.Payment{}))
}

func TestReconcileWithoutEmailSkipsUserAndEmail(t *testing.T) {
	h := newHarness(t)
	body := capturedBody("pay_1", "")

	out, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, out.Status)
	h.wait(t)

	assert.Equal(t, int64(1), h.count(t, &models.License{}))
	assert.Zero(t, h.count(t, &models.User{}))
	assert.Empty(t, h.notifier.emails())
}

func TestReconcileExistingUserKeepsCredentials(t *testing.T) {
	h := newHarness(t)
	hash := "existing-hash"
	require.NoError(t, h.db.Create(&models.User{Email: "a@x.com", PasswordHash: &hash}).Error)

	body := capturedBody("pay_1", "A@X.com")
	out, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	require.NoError(t, err)
	assert.False(t, out.UserCreated)
	h.wait(t)

	var user models.User
	require.NoError(t, h.db.First(&user, "email = ?", "a@x.com").Error)
	require.NotNil(t, user.PasswordHash)
	assert.Equal(t, "existing-hash", *user.PasswordHash)
	require.NotNil(t, user.LicenseKey)
	assert.Equal(t, out.LicenseKey, *user.LicenseKey)

	sent := h.notifier.emails()
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].TempPassword)
}

func TestReconcileNotificationFailureKeepsLicense(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("provider down")
	body := capturedBody("pay_1", "a@x.com")

	out, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, out.Status)
	h.wait(t)

	assert.Equal(t, int64(1), h.count(t, &models.License{}))
}

func TestReconcileHeldGuardReturnsConflict(t *testing.T) {
	h := newHarness(t)
	h.store.keys[h.store.InFlightKey(GuardScope, "pay_1")] = true
	body := capturedBody("pay_1", "a@x.com")

	_, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	assert.Zero(t, h.count(t, &models.Payment{}))
}

func TestReconcileReleasesGuard(t *testing.T) {
	h := newHarness(t)
	body := capturedBody("pay_1", "a@x.com")

	_, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	require.NoError(t, err)
	h.wait(t)
	assert.Empty(t, h.store.keys)
}

func TestReconcileRollsBackWhenKeyGenerationFails(t *testing.T) {
	const taken = "WTS-AAAAA-BBBBB-CCCCC-DDDDD"
	h := newHarness(t, func(p *ServiceParams) {
		p.KeyGen = licenses.NewKeyGeneratorFrom(func() (string, error) { return taken, nil }, 3)
	})
	require.NoError(t, h.db.Create(&models.Payment{ID: "pay_0", Email: "b@x.com", Status: enums.PaymentStatusCaptured, ReceivedAt: time.Now().UTC()}).Error)
	require.NoError(t, h.db.Create(&models.License{Key: taken, Email: "b@x.com", PaymentID: "pay_0"}).Error)
	body := capturedBody("pay_1", "a@x.com")

	_, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	require.Error(t, err)
	h.wait(t)

	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))
	assert.Equal(t, int64(1), h.count(t, &models.Payment{}), "payment insert must roll back with the failed license")
	assert.Zero(t, h.count(t, &models.User{}))
	assert.Empty(t, h.notifier.emails())
}

type failingWriter struct{ err error }

func (f failingWriter) WithTx(context.Context, func(tx *gorm.DB) error) error { return f.err }

func TestReconcileUntypedWriterErrorIsDependency(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Writer = failingWriter{err: errors.New("connection reset by peer")}
	})
	body := capturedBody("pay_1", "a@x.com")

	_, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	require.Error(t, err)
	h.wait(t)

	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.Equal(t, 503, pkgerrors.CodeOf(err).HTTPStatus())
	assert.Zero(t, h.count(t, &models.Payment{}))
	assert.Zero(t, h.count(t, &models.License{}))
	assert.Zero(t, h.count(t, &models.User{}))
	assert.Empty(t, h.notifier.emails())
	assert.Empty(t, h.store.keys)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestInFlightGuard(t *testing.T) {
	store := newMemoryGuardStore()
	g, err := NewInFlightGuard(store, time.Minute, "scope")
	require.NoError(t, err)

	ok, err := g.Acquire(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = g.Acquire(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Release(context.Background(), "pay_1"))
	ok, err = g.Acquire(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = g.Acquire(context.Background(), "")
	require.Error(t, err)
	_, err = NewInFlightGuard(nil, time.Minute, "scope")
	require.Error(t, err)
}

type switchableSender struct {
	mu   sync.Mutex
	err  error
	sent []mailer.Message
}

func (s *switchableSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *switchableSender) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

var tempPasswordLine = regexp.MustCompile(`Temporary password for a@x\.com: (\S+)`)

func TestResendAfterFailedFirstEmailDeliversWorkingPassword(t *testing.T) {
	sender := &switchableSender{err: errors.New("provider down")}
	cheap := config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1}

	var notifier notifications.Service
	h := newHarness(t, func(p *ServiceParams) {
		var err error
		notifier, err = notifications.NewService(notifications.ServiceParams{
			Sender:   sender,
			Licenses: p.Licenses,
			Users:    p.Users,
			Password: cheap,
			Writer:   p.Writer,
			Timeout:  time.Second,
		})
		require.NoError(t, err)
		p.Notifier = notifier
		p.Password = cheap
	})

	body := capturedBody("pay_1", "a@x.com")
	out, err := h.svc.Reconcile(context.Background(), body, razorpay.Sign(body, secret))
	require.NoError(t, err)
	require.True(t, out.UserCreated)
	h.wait(t)

	var license models.License
	require.NoError(t, h.db.First(&license, "payment_id = ?", "pay_1").Error)
	require.Nil(t, license.EmailSentAt, "first delivery failed")

	sender.setErr(nil)
	require.NoError(t, notifier.Resend(context.Background(), license.Key))

	require.Len(t, sender.sent, 1)
	match := tempPasswordLine.FindStringSubmatch(sender.sent[0].Text)
	require.Len(t, match, 2, "retry email must carry a temporary password: %s", sender.sent[0].Text)

	var user models.User
	require.NoError(t, h.db.First(&user, "email = ?", "a@x.com").Error)
	require.NotNil(t, user.PasswordHash)
	ok, err := security.VerifyPassword(match[1], *user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok, "mailed password must match the stored hash")

	require.NoError(t, h.db.First(&license, "payment_id = ?", "pay_1").Error)
	assert.NotNil(t, license.EmailSentAt)
}
