package pixelize

import (
	"errors"
	"fmt"
)

var (
	// ErrUnconstrainedPixelization indicates source cells that receive no
	// contribution from any image pixel; inverting such a system is
	// degenerate and must not be attempted silently.
	ErrUnconstrainedPixelization = errors.New("pixelize: pixelization has unconstrained source cells")
	// ErrNoCells indicates a pixelization with no cells.
	ErrNoCells = errors.New("pixelize: pixelization needs at least one cell")
	// ErrBadShape indicates a rectangular pixelization with a degenerate shape.
	ErrBadShape = errors.New("pixelize: rectangular pixelization needs at least 2x2 cells")
)

// UnconstrainedError reports which source cells no image pixel maps into.
// It matches ErrUnconstrainedPixelization under errors.Is.
type UnconstrainedError struct {
	Cells []int
}

func (e *UnconstrainedError) Error() string {
	return fmt.Sprintf("pixelize: %d source cells receive no image-pixel flux (first: %d)",
		len(e.Cells), e.Cells[0])
}

func (e *UnconstrainedError) Is(target error) bool {
	return target == ErrUnconstrainedPixelization
}
