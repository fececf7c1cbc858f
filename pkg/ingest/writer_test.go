package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

type fakeOrderStore struct {
	created    []domain.Order
	failOn     int // 1-based index of the Create call that fails; 0 disables
	calls      int
	countCalls int
	countErr   error
}

func (f *fakeOrderStore) Create(ctx context.Context, order *domain.Order) error {
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return errors.New("insert failed")
	}
	f.created = append(f.created, *order)
	return nil
}

func (f *fakeOrderStore) CountByEventRef(ctx context.Context, sessionID, invoiceID *string) (int64, error) {
	f.countCalls++
	if f.countErr != nil {
		return 0, f.countErr
	}
	var count int64
	for _, order := range f.created {
		if sessionID != nil && order.StripeSessionID != nil && *order.StripeSessionID == *sessionID {
			count++
			continue
		}
		if invoiceID != nil && order.StripeInvoiceID != nil && *order.StripeInvoiceID == *invoiceID {
			count++
		}
	}
	return count, nil
}

type fakeProvisioner struct {
	existing  *domain.Business
	created   []domain.Business
	firstErr  error
	createErr error
}

func (f *fakeProvisioner) First(ctx context.Context) (*domain.Business, error) {
	if f.firstErr != nil {
		return nil, f.firstErr
	}
	if f.existing == nil {
		return nil, domain.ErrBusinessNotFound
	}
	return f.existing, nil
}

func (f *fakeProvisioner) Create(ctx context.Context, business *domain.Business) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *business)
	return nil
}

type fakeIdentityStore struct {
	created []domain.User
	err     error
}

func (f *fakeIdentityStore) Create(ctx context.Context, user *domain.User) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *user)
	return nil
}

func candidateFor(businessID uuid.UUID) Candidate {
	return Candidate{Order: domain.Order{
		ID:          uuid.New(),
		BusinessID:  businessID,
		Products:    domain.ProductList{{Name: "Box", Quantity: 1, Price: 10}},
		TotalAmount: 10,
		Status:      domain.StatusPending,
		Source:      domain.SourceStripe,
	}}
}

func TestOrderWriter_WritesResolvedCandidates(t *testing.T) {
	orders := &fakeOrderStore{}
	writer := NewOrderWriter(orders, &fakeProvisioner{}, &fakeIdentityStore{}, testLogger())
	businessID := uuid.New()

	ids, err := writer.Write(context.Background(), []Candidate{
		candidateFor(businessID),
		candidateFor(businessID),
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(ids) != 2 || len(orders.created) != 2 {
		t.Fatalf("got %d ids / %d rows, want 2 / 2", len(ids), len(orders.created))
	}
}

func TestOrderWriter_AttributesToSingleExistingBusiness(t *testing.T) {
	existing := &domain.Business{ID: uuid.New(), Name: "La Parrilla"}
	orders := &fakeOrderStore{}
	writer := NewOrderWriter(orders, &fakeProvisioner{existing: existing}, &fakeIdentityStore{}, testLogger())

	ids, err := writer.Write(context.Background(), []Candidate{candidateFor(uuid.Nil)})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d ids, want 1", len(ids))
	}
	if orders.created[0].BusinessID != existing.ID {
		t.Errorf("business id = %v, want existing %v", orders.created[0].BusinessID, existing.ID)
	}
}

func TestOrderWriter_ProvisionsFallbackBusiness(t *testing.T) {
	orders := &fakeOrderStore{}
	provisioner := &fakeProvisioner{}
	identities := &fakeIdentityStore{}
	writer := NewOrderWriter(orders, provisioner, identities, testLogger())

	ids, err := writer.Write(context.Background(), []Candidate{
		candidateFor(uuid.Nil),
		candidateFor(uuid.Nil),
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}

	// Provisioned exactly once despite two fallback candidates.
	if len(provisioner.created) != 1 {
		t.Fatalf("provisioned %d businesses, want 1", len(provisioner.created))
	}
	if len(identities.created) != 1 {
		t.Fatalf("created %d identities, want 1", len(identities.created))
	}
	business := provisioner.created[0]
	if business.Name != "Default business (Stripe)" {
		t.Errorf("fallback business name = %q", business.Name)
	}
	if business.ID != identities.created[0].ID {
		t.Error("fallback business should share its identity's id")
	}
	for _, order := range orders.created {
		if order.BusinessID != business.ID {
			t.Errorf("order attributed to %v, want fallback %v", order.BusinessID, business.ID)
		}
	}
}

func TestOrderWriter_RequiredFailureAbortsRest(t *testing.T) {
	orders := &fakeOrderStore{failOn: 2}
	writer := NewOrderWriter(orders, &fakeProvisioner{}, &fakeIdentityStore{}, testLogger())
	businessID := uuid.New()

	ids, err := writer.Write(context.Background(), []Candidate{
		candidateFor(businessID),
		candidateFor(businessID),
		candidateFor(businessID),
	})
	if !errors.Is(err, domain.ErrWriteFailed) {
		t.Fatalf("got %v, want ErrWriteFailed", err)
	}
	// Partial success is reported, not rolled back.
	if len(ids) != 1 {
		t.Errorf("got %d ids, want the 1 written before the failure", len(ids))
	}
	if orders.calls != 2 {
		t.Errorf("made %d create calls, want 2 (abort after failure)", orders.calls)
	}
}

func TestOrderWriter_OptionalFailureIsSkipped(t *testing.T) {
	orders := &fakeOrderStore{failOn: 1}
	writer := NewOrderWriter(orders, &fakeProvisioner{}, &fakeIdentityStore{}, testLogger())
	businessID := uuid.New()

	optional := candidateFor(businessID)
	optional.Optional = true

	ids, err := writer.Write(context.Background(), []Candidate{
		optional,
		candidateFor(businessID),
	})
	if err != nil {
		t.Fatalf("optional failure must not fail the write: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("got %d ids, want 1 (the required candidate)", len(ids))
	}
}

func TestOrderWriter_RedeliveryCreatesDuplicates(t *testing.T) {
	// There is no idempotency ledger keyed by event id: redelivering the
	// same event writes duplicate rows. This documents the known gap.
	orders := &fakeOrderStore{}
	writer := NewOrderWriter(orders, &fakeProvisioner{}, &fakeIdentityStore{}, testLogger())
	businessID := uuid.New()

	sessionID := "cs_dup"
	candidate := candidateFor(businessID)
	candidate.Order.StripeSessionID = &sessionID

	for i := 0; i < 2; i++ {
		redelivered := candidate
		redelivered.Order.ID = uuid.New()
		if _, err := writer.Write(context.Background(), []Candidate{redelivered}); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}

	var matching int
	for _, order := range orders.created {
		if order.StripeSessionID != nil && *order.StripeSessionID == sessionID {
			matching++
		}
	}
	if matching != 2 {
		t.Errorf("got %d rows for the redelivered session, want 2 duplicates", matching)
	}
	// The writer checks prior rows on every delivery so redelivery is at
	// least visible in the logs.
	if orders.countCalls != 2 {
		t.Errorf("made %d event-ref lookups, want 2", orders.countCalls)
	}
}

func TestOrderWriter_RedeliveryCheckFailureDoesNotBlockWrite(t *testing.T) {
	orders := &fakeOrderStore{countErr: errors.New("count failed")}
	writer := NewOrderWriter(orders, &fakeProvisioner{}, &fakeIdentityStore{}, testLogger())

	sessionID := "cs_count_err"
	candidate := candidateFor(uuid.New())
	candidate.Order.StripeSessionID = &sessionID

	ids, err := writer.Write(context.Background(), []Candidate{candidate})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("got %d ids, want 1", len(ids))
	}
}
