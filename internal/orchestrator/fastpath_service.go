package orchestrator

import (
	"context"
	"fmt"

	"github.com/dentalops/assistant/internal/parse"
)

// fastServiceUpdate applies the single recognized service mutation shape.
// Role gating already happened in Handle; reaching this point means the
// caller is a super admin and service writes are enabled.
func (o *Orchestrator) fastServiceUpdate(ctx context.Context, tenantID int64, msg string) (string, bool) {
	update, ok := parse.DetectServiceUpdate(msg)
	if !ok {
		return "", false
	}
	if tenantID == 0 {
		return MsgNotLinked, true
	}

	_, err := o.callTool(ctx, tenantID, "service_update", map[string]any{
		"service_id": update.ServiceID,
		"fields":     map[string]any{update.Field: update.Value},
	})
	if err != nil {
		return fmt.Sprintf("I couldn't update service #%d. The server rejected the change.", update.ServiceID), true
	}

	value := fmt.Sprintf("%v", update.Value)
	if b, isBool := update.Value.(bool); isBool {
		value = "no"
		if b {
			value = "yes"
		}
	}
	return fmt.Sprintf("✅ Service #%d updated.\n- %s: %s", update.ServiceID, fieldLabel(update.Field), value), true
}
