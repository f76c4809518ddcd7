package currencies

import "github.com/sig-0/centavo/storage/types"

// The CLDR tables bundled with golang.org/x/text are from release 32 (2017).
// Territories that adopted a new tender currency since then are listed here,
// and take precedence over the bundled data.

// tenderChanges maps a region to the tender currency it adopted after CLDR 32
var tenderChanges = map[string]types.Currency{
	"HR": "EUR", // 2023-01-01, replaced HRK
	"MR": "MRU", // 2018-01-01, replaced MRO
	"SL": "SLE", // 2022-07-01, replaced SLL
	"ST": "STN", // 2018-01-01, replaced STD
	"VE": "VES", // 2018-08-20, replaced VEF
	"ZW": "ZWG", // 2024-06-25
}

// introduced are the ISO 4217 codes published after CLDR 32
var introduced = map[types.Currency]struct{}{
	"MRU": {},
	"SLE": {},
	"STN": {},
	"UYW": {},
	"VED": {},
	"VES": {},
	"ZWG": {},
}
