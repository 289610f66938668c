package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"amequeue/internal/api"
	"amequeue/internal/services"
	"amequeue/internal/testsupport"
)

const presetCacheXML = `<?xml version="1.0" encoding="UTF-8"?>
<PremiereData Version="3">
  <Key>
    <Key>
      <PresetID>b2</PresetID>
      <PresetPath>C:\Users\me\Presets\Proxy 720p.epr</PresetPath>
      <PresetName>Proxy 720p</PresetName>
      <FolderDisplayPath>User Presets</FolderDisplayPath>
    </Key>
  </Key>
</PremiereData>`

func TestEnqueueRetriesCatalogAfterLoadFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.PresetCache = filepath.Join(t.TempDir(), "PresetCache.xml")
	d, mgr := newTestDaemon(t, cfg, slotEncoder(true), &stubServer{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})

	req := api.EnqueueRequest{Source: "/media/a.mov", Destination: "/media/a.mp4", Preset: "User Presets/Proxy 720p"}
	if _, err := d.Enqueue(req); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error while the catalog is missing, got %v", err)
	}

	if err := os.WriteFile(cfg.Paths.PresetCache, []byte(presetCacheXML), 0o644); err != nil {
		t.Fatalf("write preset cache: %v", err)
	}
	j, err := d.Enqueue(req)
	if err != nil {
		t.Fatalf("enqueue after the catalog appeared: %v", err)
	}
	if got, want := j.Submission().SourcePresetPath, `C:\Users\me\Presets\Proxy 720p.epr`; got != want {
		t.Fatalf("preset path = %q, want %q", got, want)
	}
}
