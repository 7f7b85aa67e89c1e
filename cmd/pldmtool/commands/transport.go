package commands

import (
	"fmt"

	"github.com/openbmc/pldm-sub002/internal/mctp"
	"github.com/openbmc/pldm-sub002/internal/requester"
)

func dial() (mctp.Transport, *requester.Runner, error) {
	backend := mctp.BackendMCTPDemux
	if backendFlag == "af-mctp" {
		backend = mctp.BackendAFMCTP
	} else if backendFlag != "mctp-demux" {
		return nil, nil, fmt.Errorf("pldmtool: unknown backend %q", backendFlag)
	}

	transport, err := mctp.New(backend, socketPath)
	if err != nil {
		return nil, nil, fmt.Errorf("pldmtool: dialing transport: %w", err)
	}
	runner := requester.NewRunner(transport, requester.DefaultConfig())
	return transport, runner, nil
}
