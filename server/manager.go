package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// Simulation 管理服务端、所有 Actor 与观察接口的生命周期
type Simulation struct {
	cfg      Config
	Server   *Server
	Actors   []*Actor
	api      *API
	terminal *TerminalPresenter
}

// SourceFunc 为每个 Actor 提供动作来源
type SourceFunc func(id ActorID) ActionSource

// NewSimulation 按配置创建服务端与 Actor；out 为 nil 或 cfg.Render=false 时不绘制终端
func NewSimulation(cfg Config, out io.Writer, sources SourceFunc) *Simulation {
	srv := NewServer(cfg.ServerOptions())
	sim := &Simulation{cfg: cfg, Server: srv}

	if sources == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		sources = func(id ActorID) ActionSource {
			return NewRandomSource(seed + uint64(id))
		}
	}

	for i := 1; i <= cfg.Actors; i++ {
		id := ActorID(i)
		srv.Register(id)
		sim.Actors = append(sim.Actors, NewActor(id, srv, sources(id), cfg.TickInterval))
	}

	if cfg.Render && out != nil {
		sim.terminal = NewTerminalPresenter(out)
		srv.AddPresenter(sim.terminal)
	}
	if cfg.HTTPAddr != "" {
		sim.api = NewAPI(srv)
	}
	return sim
}

// Run 运行到配置的时长或 ctx 取消；所有协程退出后处理残留动作并返回最终快照
func (s *Simulation) Run(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	var httpSrv *http.Server
	if s.api != nil {
		ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			return Snapshot{}, fmt.Errorf("listen %s: %w", s.cfg.HTTPAddr, err)
		}
		httpSrv = &http.Server{Addr: s.cfg.HTTPAddr, Handler: s.api.Handler()}
		go func() {
			Log.Infof("observer listening on %s", ln.Addr())
			if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Log.Errorf("observer serve: %v", err)
			}
		}()
	}

	Log.Infof("simulation started: actors=%d tick=%v duration=%v",
		len(s.Actors), s.cfg.TickInterval, s.cfg.Duration)

	var wg sync.WaitGroup
	wg.Add(1)
	go s.Server.Run(ctx, &wg)
	for _, a := range s.Actors {
		wg.Add(1)
		go a.Run(ctx, &wg)
	}

	<-ctx.Done()
	wg.Wait()

	final := s.Server.Flush()

	if httpSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			Log.Warnf("observer shutdown: %v", err)
		}
	}
	if s.terminal != nil {
		s.terminal.Close()
	}

	Log.Infow("simulation finished", "cycle", final.Cycle, "penalties", final.Penalties)
	return final, nil
}
