package application

import (
	"context"
	"fmt"
	"testing"

	registry "waterworks/internal/registry/domain"
	memoryrepo "waterworks/internal/registry/infrastructure/memory"
)

type stubAllocator struct {
	next int
}

func (a *stubAllocator) NextAccountNumber(ctx context.Context) (string, error) {
	_ = ctx
	a.next++
	return fmt.Sprintf("%05d", a.next), nil
}

func newService(t *testing.T) *ConsumerService {
	t.Helper()
	service, err := NewConsumerService(memoryrepo.NewConsumerRepository(), &stubAllocator{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestConsumerService_Create(t *testing.T) {
	service := newService(t)

	consumer, err := service.Create(context.Background(), CreateConsumerRequest{
		FirstName:  "Juan",
		LastName:   "dela Cruz",
		Address:    "123 Mabini St",
		UsageClass: "Residential",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if consumer.AccountNumber != "00001" {
		t.Fatalf("expected account 00001, got %s", consumer.AccountNumber)
	}
	if consumer.Status != registry.StatusActive {
		t.Fatalf("expected active status, got %s", consumer.Status)
	}
	if consumer.FullName() != "Juan dela Cruz" {
		t.Fatalf("unexpected full name %q", consumer.FullName())
	}
}

func TestConsumerService_CreateInvalidClass(t *testing.T) {
	service := newService(t)

	_, err := service.Create(context.Background(), CreateConsumerRequest{
		FirstName:  "Juan",
		LastName:   "dela Cruz",
		Address:    "123 Mabini St",
		UsageClass: "Industrial",
	})
	if err != registry.ErrInvalidUsageClass {
		t.Fatalf("expected ErrInvalidUsageClass, got %v", err)
	}
}

func TestConsumerService_Update(t *testing.T) {
	service := newService(t)
	consumer, err := service.Create(context.Background(), CreateConsumerRequest{
		FirstName:  "Maria",
		LastName:   "Santos",
		Address:    "456 Rizal Ave",
		UsageClass: "Commercial",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	senior := true
	address := "789 Bonifacio St"
	updated, err := service.Update(context.Background(), consumer.ID, UpdateConsumerRequest{
		Address:       &address,
		SeniorCitizen: &senior,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Address != address {
		t.Fatalf("expected address %q, got %q", address, updated.Address)
	}
	if !updated.SeniorCitizen {
		t.Fatal("expected senior citizen flag set")
	}
	if updated.FirstName != "Maria" {
		t.Fatalf("first name should be untouched, got %q", updated.FirstName)
	}
}

func TestConsumerService_DisconnectReconnect(t *testing.T) {
	service := newService(t)
	consumer, err := service.Create(context.Background(), CreateConsumerRequest{
		FirstName:  "Pedro",
		LastName:   "Reyes",
		Address:    "10 Luna St",
		UsageClass: "Residential",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cut, err := service.Disconnect(context.Background(), consumer.ID, "unpaid bills")
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if cut.Status != registry.StatusDisconnected || cut.CutOffAt == nil {
		t.Fatalf("expected disconnected with cut off time, got %+v", cut)
	}
	if cut.CutOffReason != "unpaid bills" {
		t.Fatalf("expected cut off reason recorded, got %q", cut.CutOffReason)
	}

	if _, err := service.Disconnect(context.Background(), consumer.ID, ""); err != registry.ErrAlreadyCutOff {
		t.Fatalf("expected ErrAlreadyCutOff, got %v", err)
	}

	back, err := service.Reconnect(context.Background(), consumer.ID)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if back.Status != registry.StatusActive || back.CutOffAt != nil {
		t.Fatalf("expected active with no cut off time, got %+v", back)
	}
	if back.CutOffReason != "" {
		t.Fatalf("expected cut off reason cleared, got %q", back.CutOffReason)
	}
}

func TestConsumerService_GetMissing(t *testing.T) {
	service := newService(t)
	if _, err := service.Get(context.Background(), "con-missing"); err != registry.ErrConsumerNotFound {
		t.Fatalf("expected ErrConsumerNotFound, got %v", err)
	}
}
