package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"

	"github.com/LdDl/pitch-tracker/api"
	"github.com/LdDl/pitch-tracker/detection"
	"github.com/LdDl/pitch-tracker/mot"
	"github.com/LdDl/pitch-tracker/pipeline"
	"github.com/LdDl/pitch-tracker/registration"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := pipeline.LoadConfig(*configFile)
	if err != nil {
		log.WithError(err).Fatal("Can't load configuration")
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.WithError(err).Warnf("Unknown log level '%s', using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	mot.SetLogger(log)
	registration.SetLogger(log)
	detection.SetLogger(log)
	pipeline.SetLogger(log)

	log.WithFields(logrus.Fields{
		"gocv":   gocv.Version(),
		"opencv": gocv.OpenCVVersion(),
	}).Info("Starting")

	processor, err := run(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Processing failed")
	}
	defer processor.Close()

	if err := writeExport(cfg.Video, processor); err != nil {
		log.WithError(err).Fatal("Can't write export")
	}

	if cfg.HTTP.Enabled {
		gin.SetMode(gin.ReleaseMode)
		router := api.NewRouter(processor)
		log.WithField("addr", cfg.HTTP.Addr).Info("Serving tracks")
		if err := router.Run(cfg.HTTP.Addr); err != nil {
			log.WithError(err).Fatal("HTTP server stopped")
		}
	}
}

// run takes the first frame as the reference and processes every frame after it
func run(cfg *pipeline.Config, log *logrus.Logger) (*pipeline.Processor, error) {
	video, err := gocv.VideoCaptureFile(cfg.Video.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open video '%s'", cfg.Video.Path)
	}
	defer video.Close()

	detector, err := detection.NewYOLODetector(cfg.YOLOConfig())
	if err != nil {
		return nil, errors.Wrap(err, "Can't create detector")
	}
	defer detector.Close()

	processor, err := pipeline.NewProcessor(cfg, nil)
	if err != nil {
		return nil, err
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if ok := video.Read(&frame); !ok || frame.Empty() {
		processor.Close()
		return nil, errors.Errorf("Can't read reference frame from '%s'", cfg.Video.Path)
	}
	if err := processor.Initialize(frame); err != nil {
		processor.Close()
		return nil, errors.Wrap(err, "Can't initialize registration")
	}

	skipped := 0
	for {
		if ok := video.Read(&frame); !ok || frame.Empty() {
			break
		}
		result, err := processor.ProcessWith(frame, detector)
		if err != nil {
			processor.Close()
			return nil, err
		}
		if !result.TransformValid {
			skipped++
			continue
		}
		log.WithFields(logrus.Fields{
			"frame":       result.Frame,
			"detections":  result.Detections,
			"assignments": len(result.Assignments),
			"dropped":     result.Dropped,
			"inliers":     result.Inliers,
			"transform":   result.Transform.Values(),
		}).Debug("Frame processed")
	}
	log.WithField("skipped_frames", skipped).Info("Video processed")
	return processor, nil
}

func writeExport(video pipeline.VideoConfig, processor *pipeline.Processor) error {
	var out io.Writer = os.Stdout
	if video.Output != "" {
		file, err := os.Create(video.Output)
		if err != nil {
			return errors.Wrapf(err, "Can't create '%s'", video.Output)
		}
		defer file.Close()
		out = file
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if video.Legacy {
		return encoder.Encode(processor.LegacyExport())
	}
	return encoder.Encode(processor.Export())
}
