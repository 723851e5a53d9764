package contracts

import (
	_ "embed"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	//go:embed abi/EventFactory.json
	eventFactoryJSON string
	//go:embed abi/UserTicketHub.json
	userTicketHubJSON string
	//go:embed abi/EventDiscovery.json
	eventDiscoveryJSON string
)

var (
	eventFactoryABI   = mustParseABI(eventFactoryJSON)
	userTicketHubABI  = mustParseABI(userTicketHubJSON)
	eventDiscoveryABI = mustParseABI(eventDiscoveryJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("contracts: invalid embedded ABI: " + err.Error())
	}
	return parsed
}
