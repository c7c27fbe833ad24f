package validate

import (
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/tripflow/pkg/schema"
)

var schemas sync.Map // *schema.Profile -> *arrow.Schema

// schemaFor caches the partitioned output schema of a profile.
func schemaFor(p *schema.Profile) *arrow.Schema {
	if s, ok := schemas.Load(p); ok {
		return s.(*arrow.Schema)
	}
	s, _ := schemas.LoadOrStore(p, p.PartitionedSchema())
	return s.(*arrow.Schema)
}
