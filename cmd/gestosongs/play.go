package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ayusman/gestosongs/internal/app"
	"github.com/ayusman/gestosongs/internal/audio"
	"github.com/ayusman/gestosongs/internal/capture"
	"github.com/ayusman/gestosongs/internal/config"
	"github.com/ayusman/gestosongs/internal/detector"
	"github.com/ayusman/gestosongs/internal/hud"
	"github.com/ayusman/gestosongs/internal/server"
	"github.com/ayusman/gestosongs/internal/store"
	"github.com/ayusman/gestosongs/internal/tray"
)

// UI front ends selectable with --ui.
const (
	uiAuto = "auto"
	uiTUI  = "tui"
	uiWeb  = "web"
	uiNone = "none"
)

type playFlags struct {
	ui        string
	addr      string
	tray      bool
	mute      bool
	mode      string
	noHistory bool
	camera    int
	threshold float64
	webDir    string
}

func newPlayCmd() *cobra.Command {
	var f playFlags

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start the camera and play",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, &f)
		},
	}

	cmd.Flags().StringVar(&f.ui, "ui", uiAuto, "front end: auto, tui, web or none")
	cmd.Flags().StringVar(&f.addr, "addr", "", "serve the web UI on this address")
	cmd.Flags().BoolVar(&f.tray, "tray", false, "show a system tray menu")
	cmd.Flags().BoolVar(&f.mute, "mute", false, "disable sound")
	cmd.Flags().StringVar(&f.mode, "mode", "", "start in challenge or free mode")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record sessions")
	cmd.Flags().IntVar(&f.camera, "camera", 0, "camera device index")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "touch distance in pixels")
	cmd.Flags().StringVar(&f.webDir, "web-dir", "", "directory with the web UI files")

	return cmd
}

// applyFlags copies explicitly set flags over the file config.
func applyFlags(cmd *cobra.Command, f *playFlags, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("mute") {
		cfg.Audio.Mute = f.mute
	}
	if flags.Changed("mode") {
		cfg.Game.Mode = f.mode
	}
	if flags.Changed("no-history") {
		cfg.History.Enabled = !f.noHistory
	}
	if flags.Changed("camera") {
		cfg.Camera.Index = f.camera
	}
	if flags.Changed("threshold") {
		cfg.Game.TouchThreshold = f.threshold
	}
	if flags.Changed("addr") {
		cfg.Server.Addr = f.addr
	}
}

// resolveUI picks the front end. auto means the terminal HUD when stdout is
// a terminal and the web UI otherwise.
func resolveUI(cmd *cobra.Command, ui string) (string, error) {
	switch ui {
	case uiTUI, uiWeb, uiNone:
		return ui, nil
	case uiAuto:
		if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return uiTUI, nil
		}
		return uiWeb, nil
	}
	return "", fmt.Errorf("unknown ui %q", ui)
}

func settingsFrom(cfg config.Config) app.Settings {
	return app.Settings{
		Gestures:       cfg.GestureConfig(),
		TouchThreshold: cfg.Game.TouchThreshold,
		ResultDisplay:  cfg.Game.ResultDisplayDuration(),
		NoteDecay:      cfg.Game.NoteDecayDuration(),
		Volume:         cfg.Audio.Volume,
		SuccessSound:   cfg.Audio.Success,
		FailSound:      cfg.Audio.Fail,
	}
}

func runPlay(cmd *cobra.Command, f *playFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, f, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	mode, err := app.ParseMode(cfg.Game.Mode)
	if err != nil {
		return err
	}

	ui, err := resolveUI(cmd, f.ui)
	if err != nil {
		return err
	}
	serveWeb := ui == uiWeb || cmd.Flags().Changed("addr")

	logger, logCloser, err := newLogger(ui == uiTUI)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.History.Enabled {
		st, err = store.New(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer st.Close()
	}

	var det detector.Detector
	mp, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        cfg.Tracking.MaxHands,
		MinConfidence:   cfg.Tracking.MinDetection,
		MinTrackingConf: cfg.Tracking.MinTracking,
	})
	if err != nil {
		logger.Warn("hand tracker unavailable, no hands will be detected", "err", err)
		det = detector.NewMockDetector()
	} else {
		det = mp
	}

	sink := newSink(cfg, logger)
	defer sink.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := app.New(app.Config{
		Settings:    settingsFrom(cfg),
		Mode:        mode,
		FPS:         cfg.Camera.FPS,
		StreamEvery: cfg.Server.StreamEvery,
		Camera: capture.NewCamera(capture.Options{
			DeviceID: cfg.Camera.Index,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
			Mirror:   cfg.Camera.Mirror,
		}),
		Detector: det,
		Audio:    sink,
		Store:    st,
		Metrics:  app.NewMetrics(reg),
		Logger:   logger,
	})
	defer a.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	watchConfig(ctx, &wg, cmd, f, a, logger)

	url := ""
	if serveWeb {
		srv := server.New(server.Config{
			StaticDir: findWebDir(f.webDir),
			Game:      a,
			Store:     st,
			Gatherer:  reg,
			Logger:    logger,
		})
		a.AddRenderer(srv.Live())
		a.AddFrameSink(srv.Stream())
		url = "http://" + cfg.Server.Addr

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				logger.Error("web server stopped", "err", err)
				stop()
			}
		}()
		logger.Info("web UI listening", "url", url)
		if ui != uiTUI {
			logErrf("gestosongs: open %s\n", url)
		}
	}

	var (
		runErr  error
		runDone = make(chan struct{})
	)
	startGame := func() {
		go func() {
			defer close(runDone)
			runErr = a.Run(ctx)
			stop()
		}()
	}

	var t *tray.Tray
	if f.tray {
		t = tray.New(a)
		if url != "" {
			t.OnOpen(func() { openBrowser(url, logger) })
		}
		t.OnQuit(stop)
		a.AddRenderer(t)
	}

	frontEnd := func() error {
		startGame()
		if ui != uiTUI {
			<-ctx.Done()
			<-runDone
			return nil
		}
		return runHUD(ctx, stop, a, runDone)
	}

	var uiErr error
	if t == nil {
		uiErr = frontEnd()
	} else {
		// The tray owns the main goroutine on every platform that has one.
		uiDone := make(chan struct{})
		go func() {
			defer close(uiDone)
			uiErr = frontEnd()
			t.Quit()
		}()
		t.Run()
		stop()
		<-uiDone
	}

	if uiErr != nil {
		return uiErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// runHUD shows the terminal HUD until the player quits or the game stops.
func runHUD(ctx context.Context, stop context.CancelFunc, a *app.App, runDone <-chan struct{}) error {
	p := tea.NewProgram(hud.NewModel(a), tea.WithAltScreen(), tea.WithContext(ctx))
	r := hud.NewRenderer(p.Send)
	a.AddRenderer(r)

	_, err := p.Run()
	stop()
	r.Close()
	<-runDone
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run HUD: %w", err)
	}
	return nil
}

// newSink opens the sound bank unless sound is muted or no device works.
func newSink(cfg config.Config, logger *slog.Logger) audio.Sink {
	if cfg.Audio.Mute {
		return audio.Nop{}
	}
	bank, err := audio.NewBank(audio.BankOptions{
		Dir:    cfg.Audio.SoundDir,
		Volume: cfg.Audio.Volume,
		Logger: logger,
	})
	if err != nil {
		logger.Warn("audio unavailable, playing silently", "err", err)
		return audio.Nop{}
	}

	refs := append(cfg.GestureConfig().Sounds(), cfg.Audio.Success, cfg.Audio.Fail)
	if index, err := audio.IndexSounds(cfg.Audio.SoundDir); err != nil {
		logger.Warn("cannot list sounds", "dir", cfg.Audio.SoundDir, "err", err)
	} else if missing := audio.Missing(index, refs); len(missing) > 0 {
		logger.Warn("sounds not found", "dir", cfg.Audio.SoundDir, "missing", missing)
	}
	loaded := bank.LoadAll(refs)
	logger.Info("sounds loaded", "count", loaded)
	return bank
}

// watchConfig applies config file edits while the game runs. Flags given on
// the command line keep winning over the file.
func watchConfig(ctx context.Context, wg *sync.WaitGroup, cmd *cobra.Command, f *playFlags, a *app.App, logger *slog.Logger) {
	w, err := config.NewWatcher(configPath, config.DefaultDebounce, logger)
	if err != nil {
		logger.Warn("config reload disabled", "err", err)
		return
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer w.Close()
		w.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case cfg := <-w.Updates():
				applyFlags(cmd, f, &cfg)
				if err := cfg.Validate(); err != nil {
					logger.Warn("ignoring invalid config", "err", err)
					continue
				}
				a.Reload(settingsFrom(cfg))
				logger.Info("config reloaded", "path", configPath)
			}
		}
	}()
}

// findWebDir returns dir when set, otherwise the first web directory found
// next to the working directory or the executable.
func findWebDir(dir string) string {
	if dir != "" {
		return dir
	}
	candidates := []string{"web", "../web", "../../web"}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "web"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string, logger *slog.Logger) {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	if err := c.Start(); err != nil {
		logger.Warn("cannot open browser", "url", url, "err", err)
	}
}
