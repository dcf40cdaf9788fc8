package image

import (
	"os"

	"github.com/samber/lo"
)

type Device struct {
	Name  string
	DType string
}

var (
	CUDA = Device{Name: "cuda", DType: "float16"}
	CPU  = Device{Name: "cpu", DType: "float32"}
)

var acceleratorNodes = []string{"/dev/nvidia0", "/dev/nvidiactl", "/dev/dxg"}

type statFunc func(string) (os.FileInfo, error)

// SelectDevice resolves the configured device. "auto" picks CUDA when an
// accelerator device node is present and falls back to CPU otherwise.
func SelectDevice(setting string) Device {
	return selectDevice(setting, os.Stat)
}

func selectDevice(setting string, stat statFunc) Device {
	switch setting {
	case "cuda":
		return CUDA
	case "cpu":
		return CPU
	}
	accelerated := lo.SomeBy(acceleratorNodes, func(path string) bool {
		_, err := stat(path)
		return err == nil
	})
	return lo.Ternary(accelerated, CUDA, CPU)
}
