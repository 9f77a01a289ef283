package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/pbuild/pkg/aports"
	"github.com/the-maldridge/pbuild/pkg/build"
	"github.com/the-maldridge/pbuild/pkg/chroot"
	"github.com/the-maldridge/pbuild/pkg/config"
	"github.com/the-maldridge/pbuild/pkg/http"
	"github.com/the-maldridge/pbuild/pkg/index"
	"github.com/the-maldridge/pbuild/pkg/storage"
	"github.com/the-maldridge/pbuild/pkg/types"

	_ "github.com/the-maldridge/pbuild/pkg/storage/bc"
)

func main() {
	cfgPath := flag.String("config", "pbuild.json", "Config file to load")
	arch := flag.String("arch", "", "Pin the target architecture, autodetected per package when unset")
	force := flag.Bool("force", false, "Build requested packages even when current")
	strict := flag.Bool("strict", false, "Let the builder manage its own dependencies transactionally")
	noDepends := flag.Bool("no-depends", false, "Refuse to build dependencies, missing binaries become errors")
	ignoreDepends := flag.Bool("ignore-depends", false, "Drop run time depends from the dependency walk")
	srcOverride := flag.String("src", "", "Build a single package from a local source directory")
	bootstrap := flag.Int("bootstrap", 0, "Bootstrap stage to forward to the builder")
	httpBind := flag.String("http", ":8080", "Bind string for the inspection webserver")
	flag.Parse()

	appLogger := hclog.New(&hclog.LoggerOptions{
		Name:  "pbuild",
		Level: hclog.LevelFromString(os.Getenv("PBUILD_LOG_LEVEL")),
	})
	appLogger.Info("pbuild is initializing")

	cfg := config.NewConfig()
	if err := cfg.LoadFromFile(*cfgPath); err != nil {
		appLogger.Warn("Couldn't load config, continuing with defaults", "error", err)
	}

	storage.SetLogger(appLogger)
	storage.DoCallbacks()
	store, err := storage.Initialize(cfg.Storage)
	if err != nil {
		appLogger.Error("Couldn't initialize storage", "error", err)
		return
	}
	defer store.Close()

	co := aports.NewCheckout(appLogger)
	co.URL = cfg.AportsURL
	co.Path = filepath.Join(cfg.WorkDir, cfg.AportsPath)
	if err := co.Bootstrap(); err != nil {
		appLogger.Error("Couldn't bootstrap the aports checkout", "error", err)
		return
	}

	prov := aports.NewProvider(appLogger, co.Path)
	co.OnChange(func(changed []string) {
		prov.Flush()
	})
	idx := index.NewService(appLogger)
	idx.EnablePersistence(store)
	idx.SetURLs(cfg.IndexURLs)

	backend := chroot.New(
		chroot.WithLogger(appLogger),
		chroot.WithWorkDir(cfg.WorkDir),
		chroot.WithMirrors(cfg.Mirrors),
	)

	orch := build.New(
		build.WithLogger(appLogger),
		build.WithSourceProvider(prov),
		build.WithBinaryIndex(idx),
		build.WithBackend(backend),
		build.WithWorkDir(cfg.WorkDir),
		build.WithDeviceArch(cfg.DeviceArch, cfg.PreferDeviceArch),
		build.WithBuildPackages(cfg.BuildPackages),
	)

	if flag.NArg() > 0 {
		opts := build.Opts{
			Arch:          *arch,
			Force:         *force,
			Strict:        *strict,
			IgnoreDepends: *ignoreDepends,
			NoDepends:     *noDepends,
			SrcOverride:   *srcOverride,
			Bootstrap:     types.BootstrapStage(*bootstrap),
		}
		built, err := orch.Packages(flag.Args(), opts)
		if err != nil {
			appLogger.Error("Build failed", "error", err)
			os.Exit(1)
		}
		if len(built) == 0 {
			appLogger.Info("Everything is up to date, nothing was built")
			return
		}
		appLogger.Info("Build complete", "packages", built)
		return
	}

	srv, err := http.New(appLogger)
	if err != nil {
		appLogger.Error("Error initializing webserver", "error", err)
		return
	}
	srv.Mount("/api/build", orch.HTTPEntry())
	srv.Mount("/api/aports", co.HTTPEntry())
	go srv.Serve(*httpBind)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, os.Interrupt)

	<-stop

	appLogger.Info("Shutting down")
	appLogger.Info("Goodbye!")
}
