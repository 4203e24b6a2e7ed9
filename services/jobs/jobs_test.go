package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alphazero/academy/core"
	logsvc "github.com/alphazero/academy/services/logger"
	"github.com/alphazero/academy/services/metrics"
	"github.com/alphazero/academy/storage/objectstore"
)

var testConf = &core.Config{Env: "TEST", TestMode: true}

type certsStub struct{ calls int }

func (c *certsStub) IssueMissingCertificates(context.Context) (int, error) {
	c.calls++
	return 0, nil
}

func TestReaper_Run(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocalStorage(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	files := map[string]time.Duration{
		"tmp/avatars/old.webp":  10 * 24 * time.Hour,
		"tmp/materials/old.pdf": 8 * 24 * time.Hour,
		"tmp/avatars/new.webp":  24 * time.Hour,
		"avatars/live.webp":     30 * 24 * time.Hour,
	}
	for key, age := range files {
		if err = store.Put(ctx, key, "", strings.NewReader(key)); err != nil {
			t.Fatal(err)
		}
		mod := now.Add(-age)
		if err = os.Chtimes(filepath.Join(store.Root(), filepath.FromSlash(key)), mod, mod); err != nil {
			t.Fatal(err)
		}
	}

	m := metrics.New()
	conf := core.StorageConfig{ReaperPrefix: "tmp/", RetentionDays: 7}
	r := NewReaper(store, conf, logsvc.New("JOBS : ", testConf), m)
	r.now = func() time.Time { return now }

	n, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Run() = %d; want 2", n)
	}

	objs, _ := store.List(ctx, "")
	var left []string
	for _, o := range objs {
		left = append(left, o.Key)
	}
	sort.Strings(left)
	if diff := cmp.Diff([]string{"avatars/live.webp", "tmp/avatars/new.webp"}, left); diff != "" {
		t.Errorf("remaining objects mismatch (-want +got):\n%s", diff)
	}

	if n, _ = r.Run(ctx); n != 0 {
		t.Errorf("second Run() = %d; want 0", n)
	}
}

func TestReaper_EmptyPrefix(t *testing.T) {
	store, _ := objectstore.NewLocalStorage(t.TempDir(), "")
	r := NewReaper(store, core.StorageConfig{RetentionDays: 7}, logsvc.New("JOBS : ", testConf), nil)
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("Run() with an empty prefix: want error")
	}
}

func TestRegister(t *testing.T) {
	logger := logsvc.New("JOBS : ", testConf)
	store, _ := objectstore.NewLocalStorage(t.TempDir(), "")

	tests := []struct {
		name    string
		conf    core.StorageConfig
		wantErr bool
	}{
		{"defaults", core.StorageConfig{ReaperPrefix: "tmp/", ReaperSchedule: "15 2 * * *", CertificateCron: "@hourly"}, false},
		{"disabled", core.StorageConfig{ReaperPrefix: "tmp/"}, false},
		{"bad reaper schedule", core.StorageConfig{ReaperSchedule: "every night"}, true},
		{"bad certificate schedule", core.StorageConfig{CertificateCron: "61 * * * *"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(logger, metrics.New())
			err := Register(s, tt.conf, NewReaper(store, tt.conf, logger, nil), &certsStub{})
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(logsvc.New("JOBS : ", testConf), nil)
	certs := &certsStub{}
	if err := Register(s, core.StorageConfig{CertificateCron: "@every 1h"}, nil, certs); err != nil {
		t.Fatal(err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if ctx.Err() != nil {
		t.Error("Stop() did not return before the timeout")
	}
}

func TestKVMap(t *testing.T) {
	got := kvMap([]interface{}{"entry", 3, "next", "2024", "dangling"})
	want := map[string]interface{}{"entry": 3, "next": "2024"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("kvMap() mismatch (-want +got):\n%s", diff)
	}
}
