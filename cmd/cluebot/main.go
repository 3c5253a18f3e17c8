// Command cluebot runs the crossword companion robot: it listens to the
// player, watches their face, keeps the puzzle dashboard in sync, and
// talks back.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cluebot/go-cluebot/internal/log"
	"github.com/cluebot/go-cluebot/pkg/agent"
	"github.com/cluebot/go-cluebot/pkg/audioio"
	"github.com/cluebot/go-cluebot/pkg/camera"
	"github.com/cluebot/go-cluebot/pkg/emotion"
	"github.com/cluebot/go-cluebot/pkg/journal"
	"github.com/cluebot/go-cluebot/pkg/llm"
	"github.com/cluebot/go-cluebot/pkg/prompt"
	"github.com/cluebot/go-cluebot/pkg/puzzle"
	"github.com/cluebot/go-cluebot/pkg/transcribe"
	"github.com/cluebot/go-cluebot/pkg/tts"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cluebot:", err)
		os.Exit(1)
	}
}

func run() error {
	// Local .env keeps API keys out of shell history; absence is fine.
	godotenv.Load()

	var (
		port        = flag.String("port", "8080", "Dashboard HTTP port")
		mockAudio   = flag.Bool("mock-audio", false, "Use simulated audio instead of PortAudio")
		noCamera    = flag.Bool("no-camera", false, "Disable the camera and emotion sampling")
		cameraID    = flag.Int("camera", 0, "Camera device ID")
		modelsDir   = flag.String("models", "models", "Directory containing ONNX models")
		journalDir  = flag.String("journal", "journal", "Session journal directory (empty disables)")
		participant = flag.String("participant", "", "Participant ID for per-session journals")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	log.Init(*logLevel)
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	assemblyKey := os.Getenv("ASSEMBLYAI_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if assemblyKey == "" {
		return fmt.Errorf("ASSEMBLYAI_API_KEY is required")
	}
	if openaiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	// Microphone into the shared ring.
	audioCfg := audioio.DefaultConfig()
	ring := audioio.NewRing(audioCfg.RingCapacity(), audioCfg.SampleRate, logger)
	defer ring.Stop()

	var src audioio.Source
	if *mockAudio {
		src = audioio.NewMockSource(audioCfg, logger)
	} else {
		mic, err := audioio.NewPortAudioSource(audioCfg, logger)
		if err != nil {
			return fmt.Errorf("open microphone: %w", err)
		}
		src = mic
	}
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("start microphone: %w", err)
	}
	defer src.Close()
	go audioio.Pump(ctx, src, ring)

	// Speaker for playback at the synthesis rate.
	sinkCfg := audioio.DefaultConfig()
	sinkCfg.SampleRate = 24000
	var sink audioio.Sink
	if *mockAudio {
		sink = audioio.NewMockSink(sinkCfg, logger)
	} else {
		spk, err := audioio.NewPortAudioSink(sinkCfg, logger)
		if err != nil {
			return fmt.Errorf("open speaker: %w", err)
		}
		sink = spk
	}
	if err := sink.Start(ctx); err != nil {
		return fmt.Errorf("start speaker: %w", err)
	}
	defer sink.Close()

	// Session journal, optionally namespaced per participant.
	var jr *journal.Journal
	var err error
	if *participant != "" {
		jr, err = journal.NewParticipant(*journalDir, *participant, logger)
	} else {
		jr, err = journal.New(*journalDir, logger)
	}
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jr.Close()

	// Camera, emotion classification and span tracking.
	tracker := emotion.NewTracker(logger)
	var recorder *camera.ClipRecorder
	if !*noCamera {
		camCfg := camera.DefaultConfig()
		camCfg.DeviceID = *cameraID
		dev, err := camera.OpenDevice(camCfg)
		if err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
		defer dev.Close()

		stream := camera.NewStream(camCfg, dev, logger)
		if err := stream.Start(ctx); err != nil {
			return fmt.Errorf("start camera: %w", err)
		}
		defer stream.Stop()

		clsCfg := emotion.DefaultClassifierConfig()
		clsCfg.FaceModelPath = *modelsDir + "/face_detection_yunet.onnx"
		clsCfg.EmotionModelPath = *modelsDir + "/emotion_ferplus.onnx"
		classifier, err := emotion.NewNetClassifier(clsCfg)
		if err != nil {
			return fmt.Errorf("load emotion models: %w", err)
		}
		defer classifier.Close()

		sampler := emotion.NewSampler(stream, classifier, tracker, 500*time.Millisecond, logger)
		if err := sampler.Start(ctx); err != nil {
			return fmt.Errorf("start emotion sampler: %w", err)
		}
		defer sampler.Stop()

		if jr.Dir() != "" {
			recorder = camera.NewClipRecorder(camCfg.ClipDuration, jr.Dir(), logger)
			recorder.Attach(stream)
			defer recorder.Detach(stream)
		}
	} else {
		logger.Info("camera disabled, emotion defaults to neutral")
	}

	// Streaming transcription off the ring.
	trCfg := transcribe.DefaultConfig()
	trCfg.APIKey = assemblyKey
	trCfg.SampleRate = audioCfg.SampleRate
	transcriber := transcribe.New(trCfg, ring, transcribe.NewDialer(trCfg), logger)
	if err := transcriber.Start(ctx); err != nil {
		return fmt.Errorf("start transcriber: %w", err)
	}
	defer transcriber.Stop()

	// Puzzle dashboard and grid-state sync.
	catalog, err := puzzle.LoadCatalog()
	if err != nil {
		return fmt.Errorf("load clue catalog: %w", err)
	}
	server := puzzle.NewServer(*port, catalog, logger)
	server.StartAsync()
	defer server.Shutdown()

	// Language model and voice.
	brain, err := llm.NewClient(llm.WithAPIKey(openaiKey), llm.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	defer brain.Close()

	voice, err := tts.NewOpenAI(tts.WithAPIKey(openaiKey), tts.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create tts provider: %w", err)
	}
	defer voice.Close()

	echo := transcribe.NewEchoFilter(10*time.Second, 0.8)
	speaker := tts.NewSpeaker(voice, sink, echo, logger)

	// Save a reaction clip at the end of every utterance.
	if recorder != nil {
		clips := 0
		speaker.OnSpeaking = func(speaking bool) {
			if speaking {
				return
			}
			clips++
			dir := jr.ClipDir(clips)
			if dir == "" {
				return
			}
			if err := recorder.SaveTo(dir); err != nil {
				logger.Warn("save reaction clip failed", "error", err)
			}
		}
	}

	orch, err := agent.New(agent.DefaultConfig(), agent.Deps{
		Transcripts: transcriber,
		Emotions:    tracker,
		Sync:        server.Sync,
		Builder:     prompt.NewBuilder(catalog),
		LLM:         brain,
		Speaker:     speaker,
		Journal:     jr,
		Echo:        echo,
		Status:      server,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	logger.Info("cluebot ready",
		"dashboard", "http://localhost:"+*port,
		"mock_audio", *mockAudio,
		"camera", !*noCamera,
	)

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutting down", "turns", orch.Turn())
	return nil
}
