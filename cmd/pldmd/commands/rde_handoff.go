package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/openbmc/pldm-sub002/internal/logging"
	"github.com/openbmc/pldm-sub002/internal/platform"
	"github.com/openbmc/pldm-sub002/internal/rde"
	"github.com/openbmc/pldm-sub002/internal/terminus"
)

// startRDEIfAdvertised runs the RDE discovery workflow for term if it
// advertised PLDM type 6 (Redfish Device Enablement) support, called from
// the terminus manager's platform-init handoff once PDR pagination has
// populated term.RawPDRs.
func startRDEIfAdvertised(ctx context.Context, engine *rde.Engine, store rde.DictionaryStore, sender rde.Sender, term *terminus.Terminus, logger *logging.Logger) error {
	if !term.SupportsType(rde.RDEType) {
		return nil
	}

	entries, err := platform.RedfishResourcePDREntries(term)
	if err != nil {
		logger.Warn("redfish resource pdr parse failed", "tid", term.TID, "error", err)
		return nil
	}
	if len(entries) == 0 {
		logger.Debug("terminus advertises rde but published no redfish resource pdrs", "tid", term.TID)
		return nil
	}

	sess := rde.NewSession(term.TID, term.EID, uuid.NewString(), logger)
	if err := rde.Discover(ctx, sender, store, sess, entries, engine.Metrics()); err != nil {
		logger.Warn("rde discovery failed", "tid", term.TID, "uuid", sess.UUID, "error", err)
		return nil
	}
	engine.RegisterSession(sess)
	logger.Info("rde session ready", "tid", term.TID, "uuid", sess.UUID)
	return nil
}
