package transfer

import (
	"context"
	"fmt"
)

// CompensationManager removes a part from the destination and the catalog.
// It is stateless and shared by both pipelines.
type CompensationManager struct {
	catalog PartCatalog
	deleter DestinationDeleter
}

// NewCompensationManager creates a CompensationManager backed by catalog.
// When destination also implements DestinationDeleter its copy of the part
// is deleted before the catalog is asked to. destination may be nil.
func NewCompensationManager(catalog PartCatalog, destination DestinationUploader) *CompensationManager {
	c := &CompensationManager{catalog: catalog}
	if d, ok := destination.(DestinationDeleter); ok {
		c.deleter = d
	}
	return c
}

// DeletePart deletes part. A logical refusal (ok=false) is reported as an
// error wrapping ErrCompensationRejected; transport failures are wrapped
// as they are.
func (c *CompensationManager) DeletePart(ctx context.Context, part StoredPart) error {
	if c.deleter != nil {
		if err := c.deleter.Delete(ctx, part); err != nil {
			return fmt.Errorf("delete part %s from destination: %w", part.PartID, err)
		}
	}

	ok, err := c.catalog.DeletePart(ctx, part)
	if err != nil {
		return fmt.Errorf("delete part %s: %w", part.PartID, err)
	}
	if !ok {
		return fmt.Errorf("delete part %s owned by %s: %w", part.PartID, part.OwnerID, ErrCompensationRejected)
	}
	return nil
}
