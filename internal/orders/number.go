package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// generateOrderNumber produces a human-readable candidate like
// ORD-20260901-3F7A2C. Uniqueness is enforced by the database; callers
// retry with a fresh candidate on collision.
func generateOrderNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix)
}
