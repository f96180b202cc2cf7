package profiles

import (
	"strings"

	"github.com/foxsync/foxsync-go/pkg/model"
)

// Profile captures everything series-specific: which realtime
// variables are worth polling and the numeric bounds the series
// accepts for schedule groups.
type Profile struct {
	// ID identifies the profile ("kh", "h3").
	ID string

	// RealtimeVariables are the variables requested from the
	// realtime endpoint. Nil requests all variables.
	RealtimeVariables []string

	// Ranges bounds SoC and discharge power in schedule groups.
	Ranges model.Ranges
}

// khVariables is the single-phase hybrid set.
var khVariables = []string{
	"pvPower",
	"generationPower",
	"feedinPower",
	"gridConsumptionPower",
	"loadsPower",
	"batChargePower",
	"batDischargePower",
	"SoC",
	"batTemperature",
	"ResidualEnergy",
	"RPower",
	"RVolt",
	"RFreq",
	"invTemperation",
	"ambientTemperation",
}

// h3Variables adds the S and T phases of the three-phase series.
var h3Variables = []string{
	"pvPower",
	"generationPower",
	"feedinPower",
	"gridConsumptionPower",
	"loadsPower",
	"batChargePower",
	"batDischargePower",
	"SoC",
	"batTemperature",
	"ResidualEnergy",
	"RPower",
	"SPower",
	"TPower",
	"RVolt",
	"SVolt",
	"TVolt",
	"RFreq",
	"invTemperation",
	"ambientTemperation",
}

func kh() Profile {
	return Profile{
		ID:                "kh",
		RealtimeVariables: append([]string(nil), khVariables...),
		Ranges:            model.Ranges{MinSoc: 10, MaxSoc: 100, MaxFdPwr: 12000},
	}
}

func h3() Profile {
	return Profile{
		ID:                "h3",
		RealtimeVariables: append([]string(nil), h3Variables...),
		Ranges:            model.Ranges{MinSoc: 10, MaxSoc: 100, MaxFdPwr: 30000},
	}
}

// exact maps known product types to their profile constructors.
var exact = map[string]func() Profile{
	"KH":    kh,
	"H3-G2": h3,
}

// Select returns the profile for a device based on its detail record.
// Exact product-type matches win; unmapped H3 variants fall back to
// the H3 profile; everything else gets KH, which uses bounds all
// known series accept.
func Select(detail *model.InverterDetail) Profile {
	productType := ""
	if detail != nil {
		productType = strings.ToUpper(strings.TrimSpace(detail.ProductType))
	}

	if construct, ok := exact[productType]; ok {
		return construct()
	}
	if strings.HasPrefix(productType, "H3") {
		return h3()
	}
	return kh()
}
