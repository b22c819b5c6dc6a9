package infra

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// ReloadFunc はSIGHUP受信時に呼ばれる。
type ReloadFunc func(ctx context.Context) error

// Serve はctxがキャンセルされるまでHTTPサーバーを動かし、グレースフルシャットダウンする。
// reload が nil でなければ SIGHUP で呼び出す。
func Serve(ctx context.Context, srv *http.Server, reload ReloadFunc) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, srv, ln, reload)
}

// ServeListener は既存のリスナーでServeと同じ処理を行う。
func ServeListener(ctx context.Context, srv *http.Server, ln net.Listener, reload ReloadFunc) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if reload != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, syscall.SIGHUP)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					slog.Info("received reload signal", "signal", syscall.SIGHUP.String())
					if err := reload(ctx); err != nil {
						slog.Warn("reload failed", "error", err)
					}
				}
			}
		})
	}

	return g.Wait()
}
