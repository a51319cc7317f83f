package tracking

import (
	"testing"

	"github.com/parcel-next/internal/models"
)

func TestBuildViewModelNilRecord(t *testing.T) {
	vm := BuildViewModel(nil, nil)
	if vm.Pickup != nil || vm.Destination != nil || vm.Current != nil {
		t.Fatalf("expected nil points for nil record")
	}
	if len(vm.RouteLine) != 0 {
		t.Fatalf("expected empty route line, got %v", vm.RouteLine)
	}
	if vm.EstimatedCostText != "N/A" || vm.ShippingCostText != "N/A" {
		t.Fatalf("expected N/A cost sentinels, got %q / %q", vm.EstimatedCostText, vm.ShippingCostText)
	}
}

func TestBuildViewModelPartialGeo(t *testing.T) {
	record := baseRecord()
	record.RouteDetails = &models.RouteDetails{
		PickupCoordinates: &models.Coordinates{Lat: -1.28, Lon: 36.82},
	}
	vm := BuildViewModel(&record, nil)
	if vm.Pickup == nil {
		t.Fatalf("expected pickup point")
	}
	if vm.Destination != nil {
		t.Fatalf("expected nil destination point")
	}
	if len(vm.RouteLine) != 0 {
		t.Fatalf("route line requires both endpoints, got %v", vm.RouteLine)
	}
	if vm.MapCenter == nil || *vm.MapCenter != *vm.Pickup {
		t.Fatalf("map center should fall back to pickup, got %+v", vm.MapCenter)
	}
}

func TestBuildViewModelRouteLineAndCenterOrder(t *testing.T) {
	record := baseRecord()
	record.RouteDetails = &models.RouteDetails{
		PickupCoordinates:      &models.Coordinates{Lat: -1.28, Lon: 36.82},
		DestinationCoordinates: &models.Coordinates{Lat: -4.04, Lon: 39.66},
	}
	record.CurrentCoordinates = &models.Coordinates{Lat: -2.68, Lon: 38.16}

	vm := BuildViewModel(&record, nil)
	if len(vm.RouteLine) != 2 {
		t.Fatalf("expected two-point route line, got %v", vm.RouteLine)
	}
	if vm.RouteLine[0] != (Point{Lat: -1.28, Lon: 36.82}) || vm.RouteLine[1] != (Point{Lat: -4.04, Lon: 39.66}) {
		t.Fatalf("route line order wrong: %v", vm.RouteLine)
	}
	// pickup 优先于 current 与 destination
	if vm.MapCenter == nil || *vm.MapCenter != *vm.Pickup {
		t.Fatalf("map center should prefer pickup, got %+v", vm.MapCenter)
	}
}

func TestBuildViewModelMapCenterFallsBackToCurrent(t *testing.T) {
	record := baseRecord()
	record.CurrentCoordinates = &models.Coordinates{Lat: -2.68, Lon: 38.16}
	vm := BuildViewModel(&record, nil)
	if vm.MapCenter == nil || *vm.MapCenter != (Point{Lat: -2.68, Lon: 38.16}) {
		t.Fatalf("map center should fall back to current, got %+v", vm.MapCenter)
	}
}

func TestBuildViewModelActionability(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{"Pending", true},
		{"In Transit", true},
		{"Delivered", false},
		{"Cancelled", false},
		{"Teleported", true}, // 未识别状态按可操作处理
		{"", true},
	}
	for _, tc := range cases {
		record := baseRecord()
		record.Status = tc.status
		vm := BuildViewModel(&record, nil)
		if vm.IsActionable != tc.want {
			t.Fatalf("status %q: expected actionable=%v, got %v", tc.status, tc.want, vm.IsActionable)
		}
	}
}

func TestBuildViewModelMoneyAndMetrics(t *testing.T) {
	record := baseRecord()
	cost := models.NewMoneyFromFloat(8.75)
	record.ShippingCost = &cost
	distance := 440.92
	record.DistanceKM = &distance
	eta := 387
	record.ETAMinutes = &eta

	vm := BuildViewModel(&record, nil)
	if vm.ShippingCostText != "8.75" {
		t.Fatalf("unexpected shipping cost text %q", vm.ShippingCostText)
	}
	if vm.EstimatedCostText != "N/A" {
		t.Fatalf("missing estimated cost should render N/A, got %q", vm.EstimatedCostText)
	}
	if vm.DistanceText != "440.92 km" {
		t.Fatalf("unexpected distance text %q", vm.DistanceText)
	}
	if vm.ETAText != "387 min" {
		t.Fatalf("unexpected eta text %q", vm.ETAText)
	}
}

func TestBuildViewModelImageResolver(t *testing.T) {
	record := baseRecord()
	record.ParcelImageURL = "/uploads/parcel.jpg"
	vm := BuildViewModel(&record, func(raw string) string {
		return "https://cdn.parcel.local" + raw
	})
	if vm.ParcelImageURL != "https://cdn.parcel.local/uploads/parcel.jpg" {
		t.Fatalf("resolver not applied: %q", vm.ParcelImageURL)
	}
	if vm.ProofOfDeliveryImageURL != "" {
		t.Fatalf("empty source should stay empty, got %q", vm.ProofOfDeliveryImageURL)
	}
}
