package emulator_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/auth"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/store"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/identity"
)

type testEnv struct {
	server   *httptest.Server
	store    *store.Store
	tokens   *auth.TokenManager
	billing  *billing.Client
	identity *identity.Client
}

func setupEmulator(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "emulator.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := emulator.Seed(st, time.Now()); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	tm := auth.NewTokenManager(st)
	server := httptest.NewServer(emulator.NewRouter(st, tm))
	t.Cleanup(server.Close)

	return &testEnv{
		server:   server,
		store:    st,
		tokens:   tm,
		billing:  billing.NewClient(billing.ClientConfig{APIURL: server.URL, Timeout: 5 * time.Second}),
		identity: identity.NewClient(identity.ClientConfig{APIURL: server.URL, Timeout: 5 * time.Second}),
	}
}

func (e *testEnv) login(t *testing.T) *identity.Identity {
	t.Helper()

	id, err := e.identity.Login(context.Background(), emulator.SeedEmail, emulator.SeedPassword)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return id
}

func TestLogin(t *testing.T) {
	env := setupEmulator(t)

	t.Run("valid credentials", func(t *testing.T) {
		id := env.login(t)
		if id.Token == "" {
			t.Fatal("expected a token")
		}
		if id.Email != emulator.SeedEmail || id.Name != emulator.SeedName {
			t.Errorf("identity = %+v", id)
		}
	})

	t.Run("email is case-insensitive", func(t *testing.T) {
		_, err := env.identity.Login(context.Background(), strings.ToUpper(emulator.SeedEmail), emulator.SeedPassword)
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
	})

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", emulator.SeedEmail, "nope"},
		{"unknown user", "ghost@example.com", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.identity.Login(context.Background(), tt.email, tt.password)
			if !errors.Is(err, identity.ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	env := setupEmulator(t)

	if err := emulator.Seed(env.store, time.Now()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	id := env.login(t)
	invoices, err := env.billing.ListInvoices(context.Background(), id.Token)
	if err != nil {
		t.Fatalf("ListInvoices() error = %v", err)
	}
	if len(invoices) != 4 {
		t.Errorf("got %d invoices after reseeding, want 4", len(invoices))
	}
}

func TestInvoices(t *testing.T) {
	env := setupEmulator(t)
	id := env.login(t)
	ctx := context.Background()

	invoices, err := env.billing.ListInvoices(ctx, id.Token)
	if err != nil {
		t.Fatalf("ListInvoices() error = %v", err)
	}
	if len(invoices) != 4 {
		t.Fatalf("got %d invoices, want 4", len(invoices))
	}
	if invoices[0].Number != "INV-2024-003" {
		t.Errorf("first invoice = %s, want newest issue date first", invoices[0].Number)
	}

	byNumber := make(map[string]billing.Invoice, len(invoices))
	for _, inv := range invoices {
		byNumber[inv.Number] = inv
	}

	t.Run("payments update status", func(t *testing.T) {
		want := map[string]billing.PaymentStatus{
			"INV-2024-001": billing.StatusPaid,
			"INV-2024-002": billing.StatusPartial,
			"INV-2024-003": billing.StatusPending,
			"INV-2024-004": billing.StatusCancelled,
		}
		for number, status := range want {
			if got := byNumber[number].PaymentStatus; got != status {
				t.Errorf("%s status = %s, want %s", number, got, status)
			}
		}
	})

	t.Run("voided invoice", func(t *testing.T) {
		if !byNumber["INV-2024-004"].IsVoid() {
			t.Error("INV-2024-004 should be voided")
		}
		if byNumber["INV-2024-003"].IsVoid() {
			t.Error("INV-2024-003 should not be voided")
		}
	})

	t.Run("detail with line items", func(t *testing.T) {
		inv := byNumber["INV-2024-003"]
		detail, err := env.billing.GetInvoiceDetail(ctx, id.Token, inv.ID)
		if err != nil {
			t.Fatalf("GetInvoiceDetail() error = %v", err)
		}
		if detail.Invoice.ID != inv.ID {
			t.Errorf("detail invoice = %s, want %s", detail.Invoice.ID, inv.ID)
		}
		if len(detail.Items) != 3 {
			t.Fatalf("got %d items, want 3", len(detail.Items))
		}
		if detail.Items[1].Note != "" {
			t.Errorf("second item note = %q, want blank", detail.Items[1].Note)
		}

		sum := decimal.Zero
		for _, item := range detail.Items {
			sum = sum.Add(item.Amount)
		}
		if !sum.Equal(detail.Invoice.SubTotal) {
			t.Errorf("items sum = %s, sub total = %s", sum, detail.Invoice.SubTotal)
		}
		wantTotal := detail.Invoice.SubTotal.Add(detail.Invoice.TaxAmount)
		if !detail.Invoice.Total.Equal(wantTotal) {
			t.Errorf("total = %s, want %s", detail.Invoice.Total, wantTotal)
		}
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := env.billing.GetInvoiceDetail(ctx, id.Token, "00000000-0000-0000-0000-000000000000")
		if !errors.Is(err, billing.ErrNotFound) {
			t.Errorf("GetInvoiceDetail() error = %v, want ErrNotFound", err)
		}
	})
}

func TestPayments(t *testing.T) {
	env := setupEmulator(t)
	id := env.login(t)

	payments, err := env.billing.ListPayments(context.Background(), id.Token)
	if err != nil {
		t.Fatalf("ListPayments() error = %v", err)
	}
	if len(payments) != 3 {
		t.Fatalf("got %d payments, want 3", len(payments))
	}

	if got := payments[0].ProofOfTransfer.Filename; got != "transfer-inv-2024-001.pdf" {
		t.Errorf("first proof filename = %q", got)
	}
	if !payments[1].ProofOfTransfer.IsInline() || payments[1].ProofOfTransfer.MediaType != "image/png" {
		t.Errorf("second proof = %+v, want inline png", payments[1].ProofOfTransfer)
	}
	if !payments[2].IsVoid() {
		t.Error("third payment should be voided")
	}
}

func TestNotifications(t *testing.T) {
	env := setupEmulator(t)
	id := env.login(t)
	ctx := context.Background()

	countUnread := func(t *testing.T) int {
		t.Helper()
		notifications, err := env.billing.ListNotifications(ctx, id.Token)
		if err != nil {
			t.Fatalf("ListNotifications() error = %v", err)
		}
		unread := 0
		for _, n := range notifications {
			if !n.Read {
				unread++
			}
		}
		return unread
	}

	if got := countUnread(t); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}
	if err := env.billing.MarkNotificationsRead(ctx, id.Token); err != nil {
		t.Fatalf("MarkNotificationsRead() error = %v", err)
	}
	if got := countUnread(t); got != 0 {
		t.Errorf("unread after marking = %d, want 0", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := setupEmulator(t)
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		_, err := env.billing.ListInvoices(ctx, "not-a-token")
		if !errors.Is(err, billing.ErrUnauthenticated) {
			t.Errorf("ListInvoices() error = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("token revoked by logout", func(t *testing.T) {
		id := env.login(t)
		other := env.login(t)

		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/user/logout", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+id.Token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("logout request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("logout status = %d, want 200", resp.StatusCode)
		}

		_, err = env.billing.ListPayments(ctx, id.Token)
		if !errors.Is(err, billing.ErrUnauthenticated) {
			t.Errorf("ListPayments() error = %v, want ErrUnauthenticated", err)
		}
		if _, err := env.billing.ListPayments(ctx, other.Token); err != nil {
			t.Errorf("other session should stay valid: %v", err)
		}
	})

	t.Run("logout without token", func(t *testing.T) {
		resp, err := http.Post(env.server.URL+"/api/user/logout", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/api/invoices/get")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestHealth(t *testing.T) {
	env := setupEmulator(t)

	resp, err := http.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
