package main

import (
	"flag"
	"log"
	"math/rand"

	"github.com/tensorml/TensorGen/pkg/tensor"
)

type Settings struct {
	outputPath    string
	numDatapoints int
	perFile       int
	height        int
	width         int
	channels      int
	poseDim       int
	numClasses    int
	seed          int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var settings Settings
	flag.StringVar(&settings.outputPath, "output", "", "Path to output dataset directory")
	flag.IntVar(&settings.numDatapoints, "n", 1000, "Number of datapoints")
	flag.IntVar(&settings.perFile, "perfile", 100, "Datapoints per tensor file")
	flag.IntVar(&settings.height, "height", 32, "Image height")
	flag.IntVar(&settings.width, "width", 32, "Image width")
	flag.IntVar(&settings.channels, "channels", 3, "Image channels")
	flag.IntVar(&settings.poseDim, "posedim", 4, "Pose vector size")
	flag.IntVar(&settings.numClasses, "classes", 4, "Number of classes")
	flag.Int64Var(&settings.seed, "seed", 1, "Random seed")
	flag.Parse()

	log.Printf("%+v", settings)

	var err = generateDataset(settings)
	if err != nil {
		log.Println(err)
	}
}

// generateDataset writes a synthetic classification dataset: images whose
// intensity depends on the class plus gaussian clutter, pose vectors
// centered on the class index, and integer labels.
func generateDataset(settings Settings) error {
	log.Println("generate started")
	defer log.Println("generate finished")

	var fields = []tensor.FieldSchema{
		{Name: "im", Shape: []int{settings.height, settings.width, settings.channels}},
		{Name: "pose", Shape: []int{settings.poseDim}},
		{Name: "label", Shape: []int{1}},
	}
	writer, err := tensor.NewWriter(settings.outputPath, fields, settings.perFile)
	if err != nil {
		return err
	}

	var rnd = rand.New(rand.NewSource(settings.seed))
	var imSize = settings.height * settings.width * settings.channels
	for i := 0; i < settings.numDatapoints; i++ {
		var class = rnd.Intn(settings.numClasses)
		var base = 255 * float64(class+1) / float64(settings.numClasses+1)

		var im = make([]float32, imSize)
		for j := range im {
			im[j] = float32(base + rnd.NormFloat64()*8)
		}
		var pose = make([]float32, settings.poseDim)
		for j := range pose {
			pose[j] = float32(float64(class) + rnd.NormFloat64()*0.1)
		}
		err = writer.Add(map[string][]float32{
			"im":    im,
			"pose":  pose,
			"label": {float32(class)},
		})
		if err != nil {
			return err
		}
	}
	if err = writer.Close(); err != nil {
		return err
	}
	log.Println("wrote", settings.numDatapoints, "datapoints to", settings.outputPath)
	return nil
}
