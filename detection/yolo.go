package detection

import (
	"bufio"
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	yoloScaleFactor = 1.0 / 255.0
)

var (
	yoloMean     = gocv.NewScalar(0.0, 0.0, 0.0, 0.0)
	yoloBlobName = ""
)

// YOLOConfig holds parameters of Darknet YOLO detector
type YOLOConfig struct {
	Weights string
	Config  string
	// File with class names, one per line. When empty, only index 0 is known as "person"
	ClassesFile string
	// Network input side. Default 416
	InputSize int
	// OpenCV DNN backend and target names, e.g. "default"/"cpu" or "cuda"/"cuda"
	Backend string
	Target  string
	// Confidence/class filter applied before suppression
	Filter Filter
	// NMS score threshold. Default 0.3
	ScoreThreshold float32
	// NMS overlap threshold. Default 0.4
	NMSThreshold float32
}

// DefaultYOLOConfig returns defaults for the given model files
func DefaultYOLOConfig(weights, config string) YOLOConfig {
	return YOLOConfig{
		Weights:        weights,
		Config:         config,
		InputSize:      416,
		Backend:        "default",
		Target:         "cpu",
		Filter:         DefaultFilter(),
		ScoreThreshold: 0.3,
		NMSThreshold:   0.4,
	}
}

// YOLODetector runs Darknet YOLO network via OpenCV DNN module
type YOLODetector struct {
	cfg         YOLOConfig
	net         gocv.Net
	layersNames []string
	classes     []string
}

// NewYOLODetector loads network. Call Close when done.
func NewYOLODetector(cfg YOLOConfig) (*YOLODetector, error) {
	classes := []string{"person"}
	if cfg.ClassesFile != "" {
		var err error
		classes, err = readClasses(cfg.ClassesFile)
		if err != nil {
			return nil, err
		}
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 416
	}
	net := gocv.ReadNet(cfg.Weights, cfg.Config)
	if net.Empty() {
		return nil, errors.Errorf("Can't read network from '%s' and '%s'", cfg.Weights, cfg.Config)
	}
	if err := net.SetPreferableBackend(gocv.ParseNetBackend(cfg.Backend)); err != nil {
		net.Close()
		return nil, errors.Wrapf(err, "Can't set backend %s", cfg.Backend)
	}
	if err := net.SetPreferableTarget(gocv.ParseNetTarget(cfg.Target)); err != nil {
		net.Close()
		return nil, errors.Wrapf(err, "Can't set target %s", cfg.Target)
	}
	layersIdx := net.GetUnconnectedOutLayers()
	layersNames := make([]string, 0, len(layersIdx))
	for _, idx := range layersIdx {
		layer := net.GetLayer(idx)
		layersNames = append(layersNames, layer.GetName())
		layer.Close()
	}
	logger.WithField("layers", layersNames).Info("YOLO network loaded")
	return &YOLODetector{
		cfg:         cfg,
		net:         net,
		layersNames: layersNames,
		classes:     classes,
	}, nil
}

// Detect runs the network on frame and returns filtered, suppressed detections
func (d *YOLODetector) Detect(frame gocv.Mat) ([]Detection, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}
	blob := gocv.BlobFromImage(frame, yoloScaleFactor, image.Pt(d.cfg.InputSize, d.cfg.InputSize), yoloMean, true, false)
	defer blob.Close()

	d.net.SetInput(blob, yoloBlobName)
	outputs := d.net.ForwardLayers(d.layersNames)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	width, height := float32(frame.Cols()), float32(frame.Rows())
	candidates := make([]Detection, 0)
	for i := range outputs {
		cols := outputs[i].Cols()
		data, err := outputs[i].DataPtrFloat32()
		if err != nil {
			return nil, errors.Wrap(err, "Can't extract data")
		}
		for j := 0; j+cols <= len(data); j += cols {
			if det, ok := decodeRow(data[j:j+cols], width, height, d.classes); ok {
				candidates = append(candidates, det)
			}
		}
	}
	candidates = d.cfg.Filter.Apply(candidates)
	return NMS(candidates, d.cfg.ScoreThreshold, d.cfg.NMSThreshold), nil
}

// Close releases network
func (d *YOLODetector) Close() error {
	return d.net.Close()
}

// decodeRow converts single YOLO output row [cx, cy, w, h, objectness, class scores...] with
// coordinates relative to the frame size
func decodeRow(row []float32, frameWidth, frameHeight float32, classes []string) (Detection, bool) {
	if len(row) < 6 {
		return Detection{}, false
	}
	classID, confidence := argmax(row[5:])
	if confidence <= 0 {
		return Detection{}, false
	}
	centerX := int(row[0] * frameWidth)
	centerY := int(row[1] * frameHeight)
	width := int(row[2] * frameWidth)
	height := int(row[3] * frameHeight)
	left := centerX - width/2
	top := centerY - height/2
	box := image.Rect(left, top, left+width, top+height)
	return NewDetection(className(classID, classes), float64(confidence), box), true
}

func argmax(x []float32) (int, float32) {
	res := 0
	max := float32(0.0)
	for i, y := range x {
		if y > max {
			max = y
			res = i
		}
	}
	return res, max
}

func className(classID int, classes []string) string {
	if classID < len(classes) {
		return classes[classID]
	}
	return "class_" + strconv.Itoa(classID)
}

func readClasses(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open classes file '%s'", path)
	}
	defer file.Close()
	classes := make([]string, 0, 80)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		classes = append(classes, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "Can't read classes file '%s'", path)
	}
	return classes, nil
}
