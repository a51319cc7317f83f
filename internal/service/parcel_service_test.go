package service

import (
	"context"
	"strings"
	"testing"

	"github.com/parcel-next/internal/constants"
	"github.com/parcel-next/internal/geo"
	"github.com/parcel-next/internal/models"
	"github.com/parcel-next/internal/repository"
	"github.com/parcel-next/internal/stream"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Parcel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestParcelService(t *testing.T, geoProvider GeoProvider) (*ParcelService, repository.ParcelRepository, *stream.Hub) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewParcelRepository(db)
	hub := stream.NewHub(8)
	t.Cleanup(hub.Close)
	svc := NewParcelService(repo, hub, nil, geoProvider)
	return svc, repo, hub
}

func createTestParcel(t *testing.T, svc *ParcelService, userID uint) *models.Parcel {
	t.Helper()
	parcel, err := svc.Create(CreateParcelInput{
		UserID:         userID,
		RecipientName:  "Alice Wanjiru",
		PickupLocation: "Nairobi CBD",
		Destination:    "Mombasa",
		WeightKG:       2.5,
	})
	if err != nil {
		t.Fatalf("create parcel: %v", err)
	}
	return parcel
}

// fakeGeo 固定坐标与线路的地理服务桩
type fakeGeo struct {
	coords map[string]models.Coordinates
	route  geo.RouteResult
}

func (f *fakeGeo) Geocode(_ context.Context, location string) (*models.Coordinates, error) {
	coords, ok := f.coords[location]
	if !ok {
		return nil, geo.ErrNotFound
	}
	c := coords
	return &c, nil
}

func (f *fakeGeo) Route(_ context.Context, _, _ models.Coordinates) (*geo.RouteResult, error) {
	r := f.route
	return &r, nil
}

func TestQuoteShippingCost(t *testing.T) {
	if got := QuoteShippingCost(2.5).String(); got != "8.75" {
		t.Fatalf("QuoteShippingCost(2.5) = %s, want 8.75", got)
	}
	if got := QuoteShippingCost(0).String(); got != "5.00" {
		t.Fatalf("QuoteShippingCost(0) = %s, want base cost", got)
	}
	if got := QuoteShippingCost(-3).String(); got != "5.00" {
		t.Fatalf("negative weight should quote base cost, got %s", got)
	}
}

func TestCreateParcel(t *testing.T) {
	svc, repo, _ := newTestParcelService(t, nil)
	parcel := createTestParcel(t, svc, 1)

	if parcel.Status != constants.ParcelStatusPending {
		t.Fatalf("new parcel should be pending, got %q", parcel.Status)
	}
	if !strings.HasPrefix(parcel.TrackingNo, "PN") || len(parcel.TrackingNo) != 22 {
		t.Fatalf("unexpected tracking no %q", parcel.TrackingNo)
	}
	if parcel.ShippingCost.String() != "8.75" {
		t.Fatalf("unexpected shipping cost %s", parcel.ShippingCost)
	}

	stored, err := repo.GetByID(parcel.ID)
	if err != nil || stored == nil {
		t.Fatalf("parcel not persisted: %v", err)
	}
}

func TestCreateParcelRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestParcelService(t, nil)
	_, err := svc.Create(CreateParcelInput{UserID: 1, RecipientName: "x", PickupLocation: "a", Destination: "b", WeightKG: 0})
	if err != ErrInvalidParcelInput {
		t.Fatalf("expected ErrInvalidParcelInput, got %v", err)
	}
}

func TestGetParcelOwnership(t *testing.T) {
	svc, _, _ := newTestParcelService(t, nil)
	parcel := createTestParcel(t, svc, 1)

	if _, err := svc.Get(parcel.ID, 2, false); err != ErrParcelAccessDenied {
		t.Fatalf("expected access denied for stranger, got %v", err)
	}
	if _, err := svc.Get(parcel.ID, 2, true); err != nil {
		t.Fatalf("admin should bypass ownership: %v", err)
	}
	if _, err := svc.Get(9999, 1, false); err != ErrParcelNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelParcel(t *testing.T) {
	svc, repo, hub := newTestParcelService(t, nil)
	parcel := createTestParcel(t, svc, 1)

	sub := hub.Subscribe(parcel.ID)
	defer hub.Unsubscribe(sub)

	cancelled, msg, err := svc.Cancel(parcel.ID, 1)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if msg != "Parcel order has been cancelled" {
		t.Fatalf("unexpected message %q", msg)
	}
	if cancelled.Status != constants.ParcelStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled record incomplete: %+v", cancelled)
	}

	stored, _ := repo.GetByID(parcel.ID)
	if stored.Status != constants.ParcelStatusCancelled {
		t.Fatalf("cancellation not persisted, got %q", stored.Status)
	}

	select {
	case delta := <-sub.Deltas():
		if delta.Status == nil || *delta.Status != constants.ParcelStatusCancelled {
			t.Fatalf("unexpected delta %+v", delta)
		}
	default:
		t.Fatalf("cancel should publish a status delta")
	}
}

func TestCancelParcelGuards(t *testing.T) {
	svc, repo, _ := newTestParcelService(t, nil)
	parcel := createTestParcel(t, svc, 1)

	if _, _, err := svc.Cancel(parcel.ID, 2); err != ErrParcelAccessDenied {
		t.Fatalf("stranger must not cancel, got %v", err)
	}

	if err := repo.Updates(parcel.ID, map[string]interface{}{"status": constants.ParcelStatusDelivered}); err != nil {
		t.Fatalf("seed delivered status: %v", err)
	}
	if _, _, err := svc.Cancel(parcel.ID, 1); err != ErrParcelAlreadyDelivered {
		t.Fatalf("expected ErrParcelAlreadyDelivered, got %v", err)
	}

	if err := repo.Updates(parcel.ID, map[string]interface{}{"status": constants.ParcelStatusCancelled}); err != nil {
		t.Fatalf("seed cancelled status: %v", err)
	}
	if _, _, err := svc.Cancel(parcel.ID, 1); err != ErrParcelAlreadyCancelled {
		t.Fatalf("expected ErrParcelAlreadyCancelled, got %v", err)
	}
}

func TestUpdateDestinationClearsRoute(t *testing.T) {
	svc, repo, hub := newTestParcelService(t, nil)
	parcel := createTestParcel(t, svc, 1)

	seedRoute := &models.RouteDetails{
		PickupCoordinates:      &models.Coordinates{Lat: -1.28, Lon: 36.82},
		DestinationCoordinates: &models.Coordinates{Lat: -4.04, Lon: 39.66},
		DistanceKM:             440.92,
		ETAMinutes:             387,
	}
	if err := repo.Updates(parcel.ID, map[string]interface{}{"route_details": seedRoute}); err != nil {
		t.Fatalf("seed route: %v", err)
	}

	sub := hub.Subscribe(parcel.ID)
	defer hub.Unsubscribe(sub)

	updated, err := svc.UpdateDestination(parcel.ID, 1, "Kisumu")
	if err != nil {
		t.Fatalf("update destination: %v", err)
	}
	if updated.Destination != "Kisumu" || updated.RouteDetails != nil {
		t.Fatalf("destination update incomplete: %+v", updated)
	}

	stored, _ := repo.GetByID(parcel.ID)
	if stored.Destination != "Kisumu" || stored.RouteDetails != nil {
		t.Fatalf("stale route survived destination change: %+v", stored)
	}

	select {
	case delta := <-sub.Deltas():
		if delta.Destination == nil || *delta.Destination != "Kisumu" {
			t.Fatalf("unexpected delta %+v", delta)
		}
	default:
		t.Fatalf("destination change should publish a delta")
	}
}

func TestUpdateDestinationRejectsDelivered(t *testing.T) {
	svc, repo, _ := newTestParcelService(t, nil)
	parcel := createTestParcel(t, svc, 1)

	if err := repo.Updates(parcel.ID, map[string]interface{}{"status": constants.ParcelStatusDelivered}); err != nil {
		t.Fatalf("seed delivered status: %v", err)
	}
	if _, err := svc.UpdateDestination(parcel.ID, 1, "Kisumu"); err != ErrDestinationNotChangeable {
		t.Fatalf("expected ErrDestinationNotChangeable, got %v", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, _, _ := newTestParcelService(t, nil)
	parcel := createTestParcel(t, svc, 1)

	updated, err := svc.UpdateStatus(parcel.ID, "in transit")
	if err != nil {
		t.Fatalf("pending -> in transit failed: %v", err)
	}
	if updated.Status != constants.ParcelStatusInTransit {
		t.Fatalf("status not normalized: %q", updated.Status)
	}

	delivered, err := svc.UpdateStatus(parcel.ID, constants.ParcelStatusDelivered)
	if err != nil {
		t.Fatalf("in transit -> delivered failed: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Fatalf("delivered_at not set")
	}

	if _, err := svc.UpdateStatus(parcel.ID, constants.ParcelStatusCancelled); err != ErrInvalidStatusTransition {
		t.Fatalf("terminal status must not transition, got %v", err)
	}
	if _, err := svc.UpdateStatus(parcel.ID, "warp speed"); err != ErrInvalidStatusTransition {
		t.Fatalf("unknown status must be rejected, got %v", err)
	}
}

func TestUpdateLocationRejectsTerminal(t *testing.T) {
	svc, repo, _ := newTestParcelService(t, nil)
	parcel := createTestParcel(t, svc, 1)

	if _, err := svc.UpdateLocation(parcel.ID, "Voi"); err != nil {
		t.Fatalf("active parcel location update failed: %v", err)
	}

	if err := repo.Updates(parcel.ID, map[string]interface{}{"status": constants.ParcelStatusCancelled}); err != nil {
		t.Fatalf("seed cancelled status: %v", err)
	}
	if _, err := svc.UpdateLocation(parcel.ID, "Voi"); err != ErrInvalidStatusTransition {
		t.Fatalf("terminal parcel must reject location updates, got %v", err)
	}
}

func TestRefreshGeoComputesRouteAndLiveMetrics(t *testing.T) {
	provider := &fakeGeo{
		coords: map[string]models.Coordinates{
			"Nairobi CBD": {Lat: -1.28, Lon: 36.82},
			"Mombasa":     {Lat: -4.04, Lon: 39.66},
			"Voi":         {Lat: -3.39, Lon: 38.56},
		},
		route: geo.RouteResult{DistanceKM: 440.92, ETAMinutes: 387},
	}
	svc, repo, hub := newTestParcelService(t, provider)
	parcel := createTestParcel(t, svc, 1)
	if _, err := svc.UpdateLocation(parcel.ID, "Voi"); err != nil {
		t.Fatalf("seed present location: %v", err)
	}

	sub := hub.Subscribe(parcel.ID)
	defer hub.Unsubscribe(sub)

	if err := svc.RefreshGeo(context.Background(), parcel.ID); err != nil {
		t.Fatalf("refresh geo: %v", err)
	}

	stored, _ := repo.GetByID(parcel.ID)
	if stored.RouteDetails == nil || stored.RouteDetails.PickupCoordinates == nil || stored.RouteDetails.DestinationCoordinates == nil {
		t.Fatalf("route endpoints not resolved: %+v", stored.RouteDetails)
	}
	if stored.CurrentCoordinates == nil || stored.CurrentCoordinates.Lat != -3.39 {
		t.Fatalf("present location not resolved: %+v", stored.CurrentCoordinates)
	}
	if stored.DistanceKM == nil || *stored.DistanceKM != 440.92 {
		t.Fatalf("live distance missing: %+v", stored.DistanceKM)
	}
	if stored.ETAMinutes == nil || *stored.ETAMinutes != 387 {
		t.Fatalf("live eta missing: %+v", stored.ETAMinutes)
	}

	select {
	case delta := <-sub.Deltas():
		if delta.RouteDetails == nil || delta.CurrentCoordinates == nil {
			t.Fatalf("geo delta incomplete: %+v", delta)
		}
	default:
		t.Fatalf("geo refresh should publish a delta")
	}
}

func TestRefreshGeoWithoutProviderIsNoop(t *testing.T) {
	svc, _, _ := newTestParcelService(t, nil)
	parcel := createTestParcel(t, svc, 1)
	if err := svc.RefreshGeo(context.Background(), parcel.ID); err != nil {
		t.Fatalf("nil provider should be a no-op: %v", err)
	}
}
