package actuator

import (
	"fmt"
	"os"
	"sync"
)

// SPIPort latches register images out through a spidev character device.
// 74HC595 banks hang off the SPI bus with the latch pin tied to chip
// select, so a plain write of the full image clocks and latches it.
type SPIPort struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// OpenSPIPort opens the spidev device at path.
func OpenSPIPort(path string) (*SPIPort, error) {
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening spi device %s: %w", path, err)
	}
	return &SPIPort{file: file, path: path}, nil
}

// Latch shifts the image out. The last register in the chain receives the
// first byte, so the image is sent in reverse.
func (p *SPIPort) Latch(bits []byte) error {
	out := make([]byte, len(bits))
	for i, b := range bits {
		out[len(bits)-1-i] = b
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.file.Write(out); err != nil {
		return fmt.Errorf("latching %d bytes to %s: %w", len(out), p.path, err)
	}
	return nil
}

// Close releases the device.
func (p *SPIPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Close()
}
