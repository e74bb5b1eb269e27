package supply

import "regexp"

// Deal title grammar. A title carries zero or more marked references:
//
//	title    := text { marker [№|N|#] value text }
//	marker   := "объект" | "обьект" | "object"
//	          | "договор" | "дог" | "дог." | "contract"
//	value    := letters, digits, "-", "/" (up to the next whitespace)
//
// Markers are case-insensitive and accept common Russian case endings
// ("договору", "объекта"). A bare "N" counts as a number sign only when
// followed by whitespace, so it never swallows the first letter of a
// value like "NORD". The first match per marker wins; a second distinct
// value for the same marker makes the title ambiguous and resolution
// records a mapping error instead of guessing.
var (
	titleObjectRe   = regexp.MustCompile(`(?i)(?:объект|обьект|object)(?:ами|ам|ах|ов|ом|а|у|е|ы)?\s*(?:[№#]|N[°o]?\s)?\s*([\p{L}\d/-]+)`)
	titleContractRe = regexp.MustCompile(`(?i)(?:договор|дог\.?|contract)(?:ами|ам|ах|ов|ом|а|у|е|ы)?\s*(?:[№#]|N[°o]?\s)?\s*([\p{L}\d/-]+)`)
)

// TitleRefs is the outcome of parsing a deal title.
type TitleRefs struct {
	ObjectCipher      string
	ContractNumber    string
	ObjectAmbiguous   bool
	ContractAmbiguous bool
}

// ParseTitle extracts object and contract references from a deal title.
func ParseTitle(title string) TitleRefs {
	var refs TitleRefs
	refs.ObjectCipher, refs.ObjectAmbiguous = firstDistinct(titleObjectRe, title)
	refs.ContractNumber, refs.ContractAmbiguous = firstDistinct(titleContractRe, title)
	return refs
}

func firstDistinct(re *regexp.Regexp, title string) (value string, ambiguous bool) {
	for _, m := range re.FindAllStringSubmatch(title, -1) {
		if value == "" {
			value = m[1]
			continue
		}
		if m[1] != value {
			return "", true
		}
	}
	return value, false
}
