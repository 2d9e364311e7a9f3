package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/wraith/internal/analyzer"
	"github.com/RowanDark/wraith/internal/history"
	"github.com/RowanDark/wraith/internal/logging"
	"github.com/RowanDark/wraith/internal/rpcsvc"
)

func TestServeBootsAndShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()

	svc := &rpcsvc.Server{
		Options: analyzer.DefaultOptions(),
		Logger:  logging.Nop(),
		History: store,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, lis, svc, 2)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer conn.Close()

	req, err := structpb.NewStruct(map[string]any{
		"input":  "ZmxhZ3tkYWVtb259",
		"layers": []any{"base64"},
	})
	if err != nil {
		t.Fatal(err)
	}
	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	resp, err := rpcsvc.NewAnalysisClient(conn).Decode(callCtx, req)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := resp.GetFields()["output"].GetStringValue(); got != "flag{daemon}" {
		t.Fatalf("output = %q, want flag{daemon}", got)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wraith.yml")
	if err := os.WriteFile(path, []byte("server:\n  addr: 127.0.0.1:7000\n  max_conns: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" || cfg.Server.MaxConns != 3 {
		t.Fatalf("server config = %+v", cfg.Server)
	}
}
