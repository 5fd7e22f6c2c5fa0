package commands

import (
	"fmt"

	forgehttp "cardforge/http"
)

func Allowlist(model *Model) {
	allowlist := forgehttp.EgressAllowlist()
	if len(allowlist) == 0 {
		model.Output += "Egress allowlist is empty, all outbound hosts are blocked\n"
		return
	}

	model.Output += "Egress allowlist:\n"
	for _, host := range allowlist {
		model.Output += fmt.Sprintf("  %s\n", host)
	}
}
