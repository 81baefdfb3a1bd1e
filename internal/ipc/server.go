package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"clipspace/internal/api"
	"clipspace/internal/catalog"
	"clipspace/internal/extern"
	"clipspace/internal/logging"
)

// Daemon is the runtime the IPC surface controls. Satisfied by the daemon.
type Daemon interface {
	Status(ctx context.Context) StatusResponse
	RequestShutdown()
}

// Server exposes the facade via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, facade *api.Service, daemon Daemon, logger *slog.Logger) (*Server, error) {
	if facade == nil {
		return nil, errors.New("ipc server requires api service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{facade: facade, daemon: daemon, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Clipspace", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String("socket", s.path))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	facade *api.Service
	daemon Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "ipc")
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	if s.daemon != nil {
		*resp = s.daemon.Status(s.ctx)
		return nil
	}
	resp.Running = true
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	if s.daemon == nil {
		return fmt.Errorf("%w: no daemon attached", extern.ErrConfiguration)
	}
	s.log().Info("shutdown requested via IPC")
	s.daemon.RequestShutdown()
	resp.Stopping = true
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	var (
		items []ItemRecord
		err   error
	)
	switch {
	case req.Query != "":
		items, err = s.facade.Search(s.ctx, req.Query)
	case req.SpaceID != nil:
		items, err = s.facade.SpaceItems(s.ctx, *req.SpaceID)
	default:
		items, err = s.facade.History(s.ctx)
	}
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) ItemDescribe(req ItemDescribeRequest, resp *ItemDescribeResponse) error {
	item, err := s.facade.Item(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Item = item
	// Binary kinds have no inline content; leave it empty.
	if content, err := s.facade.ItemContent(s.ctx, req.ID); err == nil {
		resp.Content = content
	}
	return nil
}

func spaceOverride(spaceID string) api.AddOptions {
	if spaceID == "" {
		return api.AddOptions{}
	}
	return api.AddOptions{SpaceID: &spaceID}
}

func (s *service) AddText(req AddTextRequest, resp *AddResponse) error {
	resp.Receipt = s.facade.AddText(s.ctx, req.Text, spaceOverride(req.SpaceID))
	return nil
}

func (s *service) AddFile(req AddFileRequest, resp *AddResponse) error {
	resp.Receipt = s.facade.AddFile(s.ctx, req.Path, spaceOverride(req.SpaceID))
	return nil
}

func (s *service) AddURL(req AddURLRequest, resp *AddResponse) error {
	resp.Receipt = s.facade.AddURL(s.ctx, req.URL, spaceOverride(req.SpaceID))
	return nil
}

func (s *service) DeleteItems(req DeleteItemsRequest, resp *DeleteItemsResponse) error {
	if len(req.IDs) == 0 {
		return fmt.Errorf("%w: no item ids", extern.ErrValidation)
	}
	resp.Receipt = s.facade.DeleteItems(s.ctx, req.IDs)
	return nil
}

func (s *service) MoveItems(req MoveItemsRequest, resp *MoveItemsResponse) error {
	if len(req.IDs) == 0 {
		return fmt.Errorf("%w: no item ids", extern.ErrValidation)
	}
	resp.Receipt = s.facade.MoveItems(s.ctx, req.IDs, req.SpaceID)
	return nil
}

func (s *service) TogglePin(req PinRequest, resp *PinResponse) error {
	pinned, err := s.facade.TogglePin(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Pinned = pinned
	return nil
}

func (s *service) SpaceList(_ SpaceListRequest, resp *SpaceListResponse) error {
	spaces, err := s.facade.Spaces(s.ctx)
	if err != nil {
		return err
	}
	resp.Spaces = spaces
	return nil
}

func (s *service) SpaceCreate(req SpaceCreateRequest, resp *SpaceCreateResponse) error {
	space, err := s.facade.CreateSpace(s.ctx, req.Name, req.Icon)
	if err != nil {
		return err
	}
	resp.Space = space
	return nil
}

func (s *service) SpaceDelete(req SpaceDeleteRequest, resp *SpaceDeleteResponse) error {
	if err := s.facade.DeleteSpace(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Deleted = true
	return nil
}

func (s *service) SetActiveSpace(req SetActiveSpaceRequest, resp *SetActiveSpaceResponse) error {
	if err := s.facade.SetCurrentSpace(s.ctx, req.SpaceID); err != nil {
		return err
	}
	resp.ActiveSpace = req.SpaceID
	return nil
}

func (s *service) SetSpacesEnabled(req SetSpacesEnabledRequest, resp *SetSpacesEnabledResponse) error {
	if err := s.facade.SetSpacesEnabled(s.ctx, req.Enabled); err != nil {
		return err
	}
	resp.Enabled = req.Enabled
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	jobs, err := s.facade.Jobs(s.ctx, req.States)
	if err != nil {
		return err
	}
	resp.Jobs = jobs
	return nil
}

func (s *service) EnqueueJob(req EnqueueJobRequest, resp *EnqueueJobResponse) error {
	var err error
	switch catalog.JobKind(req.Kind) {
	case catalog.JobTranscribe:
		err = s.facade.TranscribeAudio(s.ctx, req.ItemID, req.Language)
	case catalog.JobSpeakers:
		err = s.facade.IdentifySpeakers(s.ctx, req.ItemID, req.ContextHint)
	case catalog.JobSummarize:
		err = s.facade.GenerateSummary(s.ctx, req.ItemID)
	case catalog.JobAIMetadata:
		err = s.facade.GenerateMetadataAI(s.ctx, req.ItemID, req.ContextHint)
	case catalog.JobTTS:
		err = s.facade.GenerateSpeechForItem(s.ctx, req.ItemID, req.Voice)
	default:
		err = fmt.Errorf("%w: job kind %q cannot be requested directly", extern.ErrValidation, req.Kind)
	}
	if err != nil {
		return err
	}
	resp.Queued = true
	return nil
}

func (s *service) MonitorCheck(req MonitorCheckRequest, resp *MonitorCheckResponse) error {
	if err := s.facade.CheckMonitorNow(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Queued = true
	return nil
}

func (s *service) ClearCorrupt(_ ClearCorruptRequest, resp *ClearCorruptResponse) error {
	removed, err := s.facade.ClearCorrupt(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}
