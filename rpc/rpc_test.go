package rpc

import (
	"context"
	"net/rpc"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/matchgame/models"
	"github.com/wfunc/matchgame/services"
)

type mockLive struct{}

func (mockLive) Stats() models.LiveStats {
	return models.LiveStats{Rooms: 2, Players: 3, RoomsByState: map[string]int{"playing": 1, "waiting": 1}}
}

func (mockLive) ListRooms() []models.RoomInfo {
	return []models.RoomInfo{
		{Code: "ABC123", State: "playing", PlayerCount: 2},
		{Code: "XYZ789", State: "waiting", PlayerCount: 1},
	}
}

func TestAdminOverRPC(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", services.NewStatsService(mockLive{}, nil))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	go srv.Start()
	defer srv.Stop()

	client, err := rpc.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	var stats StatsReply
	if err := client.Call("Admin.Stats", &StatsArgs{}, &stats); err != nil {
		t.Fatalf("Admin.Stats failed: %v", err)
	}
	if stats.Overview.Live.Players != 3 || stats.Overview.Live.RoomsByState["waiting"] != 1 {
		t.Errorf("Unexpected stats %+v", stats.Overview)
	}

	var live StatsReply
	if err := client.Call("Admin.Stats", &StatsArgs{LiveOnly: true}, &live); err != nil {
		t.Fatalf("Admin.Stats failed: %v", err)
	}
	if live.Overview.Live.Rooms != 2 || live.Overview.Stored != nil {
		t.Errorf("Unexpected live-only stats %+v", live.Overview)
	}

	var rooms ListRoomsReply
	if err := client.Call("Admin.ListRooms", &ListRoomsArgs{State: "waiting"}, &rooms); err != nil {
		t.Fatalf("Admin.ListRooms failed: %v", err)
	}
	if len(rooms.Rooms) != 1 || rooms.Rooms[0].Code != "XYZ789" {
		t.Errorf("Expected only the waiting room, got %+v", rooms.Rooms)
	}

	var none ListRoomsReply
	if err := client.Call("Admin.ListRooms", &ListRoomsArgs{State: "lobby"}, &none); err == nil {
		t.Error("Expected an unknown state filter to be rejected")
	}
}

func TestHealthServer(t *testing.T) {
	h, err := NewHealthServer("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go h.Start()
	defer h.Stop()

	conn, err := grpc.NewClient(h.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING before startup, got %v", resp.Status)
	}

	h.SetServing(true)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %v", resp.Status)
	}
}
