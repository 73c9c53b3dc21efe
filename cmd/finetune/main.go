package main

import (
	"context"
	"flag"
	"log"
	"runtime"

	"github.com/tensorml/TensorGen/internal/datagen"
	"github.com/tensorml/TensorGen/internal/features"
	"github.com/tensorml/TensorGen/internal/ml"
	"github.com/tensorml/TensorGen/pkg/tensor"
)

type Config struct {
	datasetPath    string
	validationPath string
	xName          string
	yName          string
	netFolderPath  string
	cnnPath        string
	threads        int
	epochs         int
	batchSize      int
	seed           int64
	maxTensors     int

	rotationRange float64
	shiftRange    float64
	shearRange    float64
	zoomLo        float64
	zoomHi        float64
	horizFlip     bool
	vertFlip      bool
	imageSigma    float64
	imageCorrcoef float64
	imageDropout  float64
	rescale       float64
	fwCenter      bool
	fwStd         bool
	outputSize    int
	saveToDir     string
}

var config Config

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	flag.StringVar(&config.datasetPath, "td", "", "Path to training tensor dataset")
	flag.StringVar(&config.validationPath, "vd", "", "Path to validation tensor dataset")
	flag.StringVar(&config.xName, "x", "im", "Input field name")
	flag.StringVar(&config.yName, "y", "label", "Target field name")
	flag.StringVar(&config.netFolderPath, "net", "", "Output directory for trained heads")
	flag.StringVar(&config.cnnPath, "cnn", "", "Path to pretrained feature network, random weights if empty")
	flag.IntVar(&config.threads, "threads", runtime.NumCPU(), "Number of threads")
	flag.IntVar(&config.epochs, "epochs", 5, "Number of epochs")
	flag.IntVar(&config.batchSize, "bs", 32, "Batch size")
	flag.Int64Var(&config.seed, "seed", 0, "Random seed")
	flag.IntVar(&config.maxTensors, "maxtensors", 0, "Max chunks sampled by the statistics fit")
	flag.Float64Var(&config.rotationRange, "rot", 0, "Max abs rotation, degrees")
	flag.Float64Var(&config.shiftRange, "shift", 0, "Max abs shift, fraction of image size")
	flag.Float64Var(&config.shearRange, "shear", 0, "Max abs shear, radians")
	flag.Float64Var(&config.zoomLo, "zoomlo", 1, "Zoom range low")
	flag.Float64Var(&config.zoomHi, "zoomhi", 1, "Zoom range high")
	flag.BoolVar(&config.horizFlip, "hflip", false, "Random horizontal flips")
	flag.BoolVar(&config.vertFlip, "vflip", false, "Random vertical flips")
	flag.Float64Var(&config.imageSigma, "imgsigma", 0, "Image gaussian noise sigma")
	flag.Float64Var(&config.imageCorrcoef, "imgcorr", 0, "Image gaussian noise correlation coefficient")
	flag.Float64Var(&config.imageDropout, "imgdrop", 0, "Image dropout rate")
	flag.Float64Var(&config.rescale, "rescale", 0, "Global rescale factor")
	flag.BoolVar(&config.fwCenter, "fwcenter", false, "Featurewise centering")
	flag.BoolVar(&config.fwStd, "fwstd", false, "Featurewise std normalization")
	flag.IntVar(&config.outputSize, "outsize", datagen.DefaultOutputHeight, "Terminal image resolution")
	flag.StringVar(&config.saveToDir, "savedir", "", "Directory for augmented image dumps")
	flag.Parse()

	log.Printf("%+v", config)

	var err = run()
	if err != nil {
		log.Println(err)
	}
}

func run() error {
	trainDataset, err := tensor.Open(config.datasetPath)
	if err != nil {
		return err
	}
	log.Println("opened dataset with", trainDataset.NumDatapoints(), "datapoints")

	var validationDataset = trainDataset
	if config.validationPath != "" {
		validationDataset, err = tensor.Open(config.validationPath)
		if err != nil {
			return err
		}
		log.Println("opened validation dataset with", validationDataset.NumDatapoints(), "datapoints")
	}

	generator, err := datagen.NewGenerator(datagen.Config{
		RotationRange:               config.rotationRange,
		HeightShiftRange:            config.shiftRange,
		WidthShiftRange:             config.shiftRange,
		ShearRange:                  config.shearRange,
		ZoomRange:                   [2]float64{config.zoomLo, config.zoomHi},
		HorizontalFlip:              config.horizFlip,
		VerticalFlip:                config.vertFlip,
		ImageGaussianSigma:          config.imageSigma,
		ImageGaussianCorrcoef:       config.imageCorrcoef,
		ImageDropoutRate:            config.imageDropout,
		Rescale:                     config.rescale,
		FeaturewiseCenter:           config.fwCenter,
		FeaturewiseStdNormalization: config.fwStd,
		OutputHeight:                config.outputSize,
		OutputWidth:                 config.outputSize,
	})
	if err != nil {
		return err
	}

	var xNames = []string{config.xName}
	_, err = generator.Fit(trainDataset, xNames, config.yName, datagen.FitOptions{
		MaxTensors: config.maxTensors,
		Seed:       config.seed,
	})
	if err != nil {
		return err
	}
	var numClasses = generator.Statistics().NumClasses()
	log.Println("fitted generator,", numClasses, "classes")

	training, err := generator.FlowFromDataset(trainDataset, xNames, config.yName, datagen.IteratorOptions{
		BatchSize:  config.batchSize,
		Shuffle:    true,
		Seed:       config.seed,
		SaveToDir:  config.saveToDir,
		SavePrefix: "train",
	})
	if err != nil {
		return err
	}
	validation, err := generator.FlowFromDataset(validationDataset, xNames, config.yName, datagen.IteratorOptions{
		BatchSize: config.batchSize,
		Seed:      config.seed + 1,
	})
	if err != nil {
		return err
	}

	extractor, featureSize, err := makeExtractor(numClasses)
	if err != nil {
		return err
	}

	var trainer = ml.NewTrainer(extractor, config.xName, featureSize, numClasses, config.threads, config.seed)
	var stepsPerEpoch = max(1, trainDataset.NumDatapoints()/config.batchSize)
	var validationSteps = max(1, validationDataset.NumDatapoints()/config.batchSize)
	return trainer.Train(context.Background(), training, validation,
		config.epochs, stepsPerEpoch, validationSteps, config.netFolderPath)
}

func makeExtractor(numClasses int) (ml.IFeatureExtractor, int, error) {
	if config.cnnPath != "" {
		net, err := ml.LoadNetwork(config.cnnPath)
		if err != nil {
			return nil, 0, err
		}
		return &features.ReusableCNNExtractor{Net: net}, net.FeatureSize(), nil
	}
	var inputSize = config.outputSize * config.outputSize * datagen.DefaultOutputChannels
	var net = ml.NewNetwork([]int{inputSize, 512, numClasses}, config.seed)
	return &features.ReusableCNNExtractor{Net: net}, net.FeatureSize(), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
