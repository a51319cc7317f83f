package service

import (
	"testing"

	"github.com/parcel-next/internal/constants"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"pending":     constants.ParcelStatusPending,
		"  Pending ":  constants.ParcelStatusPending,
		"in transit":  constants.ParcelStatusInTransit,
		"IN TRANSIT":  constants.ParcelStatusInTransit,
		"delivered":   constants.ParcelStatusDelivered,
		"cancelled":   constants.ParcelStatusCancelled,
		"teleported":  "teleported",
		"":            "",
	}
	for input, want := range cases {
		if got := NormalizeStatus(input); got != want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	if !IsTerminalStatus(constants.ParcelStatusDelivered) {
		t.Fatalf("Delivered should be terminal")
	}
	if !IsTerminalStatus(constants.ParcelStatusCancelled) {
		t.Fatalf("Cancelled should be terminal")
	}
	if IsTerminalStatus(constants.ParcelStatusPending) || IsTerminalStatus(constants.ParcelStatusInTransit) {
		t.Fatalf("active statuses must not be terminal")
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{constants.ParcelStatusPending, constants.ParcelStatusInTransit},
		{constants.ParcelStatusPending, constants.ParcelStatusDelivered},
		{constants.ParcelStatusPending, constants.ParcelStatusCancelled},
		{constants.ParcelStatusInTransit, constants.ParcelStatusDelivered},
		{constants.ParcelStatusInTransit, constants.ParcelStatusCancelled},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %q -> %q to be allowed", pair[0], pair[1])
		}
	}

	denied := [][2]string{
		{constants.ParcelStatusDelivered, constants.ParcelStatusCancelled},
		{constants.ParcelStatusCancelled, constants.ParcelStatusPending},
		{constants.ParcelStatusInTransit, constants.ParcelStatusPending},
		{constants.ParcelStatusPending, constants.ParcelStatusPending},
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %q -> %q to be denied", pair[0], pair[1])
		}
	}
}
