package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/matchgame/logger"
	"github.com/wfunc/matchgame/models"
	"github.com/wfunc/matchgame/services"
	"github.com/wfunc/matchgame/state"
)

// Server manages the admin RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers the Admin service.
func NewServer(addr string, stats *services.StatsService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("Admin", NewAdminService(stats)); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

func (s *Server) Addr() string { return s.address }

// Start accepts connections until Stop is called.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

const summaryTimeout = 5 * time.Second

// AdminService exposes read-only operational views over net/rpc.
type AdminService struct {
	stats *services.StatsService
}

func NewAdminService(stats *services.StatsService) *AdminService {
	return &AdminService{stats: stats}
}

type StatsArgs struct {
	LiveOnly bool // skip the store query
}

type StatsReply struct {
	Overview services.Overview
}

// Stats reports live and stored totals. A store failure is returned to the
// caller; live numbers are still filled in.
func (a *AdminService) Stats(args *StatsArgs, reply *StatsReply) error {
	if args.LiveOnly {
		reply.Overview = services.Overview{Live: a.stats.Live()}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
	defer cancel()

	overview, err := a.stats.Summary(ctx)
	reply.Overview = overview
	return err
}

type ListRoomsArgs struct {
	State string // empty for all
}

type ListRoomsReply struct {
	Rooms []models.RoomInfo
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	if args.State != "" {
		if _, err := state.ParsePhase(args.State); err != nil {
			return err
		}
	}
	for _, info := range a.stats.Rooms() {
		if args.State == "" || info.State == args.State {
			reply.Rooms = append(reply.Rooms, info)
		}
	}
	return nil
}
