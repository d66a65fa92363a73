package explanation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/FACorreiaa/culture-voyage/internal/types"
)

const systemPrompt = "You are a helpful and culturally aware assistant. Your task is to explain why a specific place " +
	"is recommended to a user based on their cultural interests. You will be given factual data from Qloo, a cultural " +
	"intelligence platform. Your explanation must be based SOLELY on this data. Do not make up reasons. Be concise, " +
	"engaging, and sound human. Avoid phrases like 'The data suggests...' or 'Based on the information provided...'. " +
	"Just give the explanation directly."

func getUserPrompt(place types.Place, interests string) string {
	description := place.Description
	if description == "" {
		description = "N/A"
	}

	metadata := place.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		metadataJSON = []byte("{}")
	}

	return fmt.Sprintf(`
A user interested in [%[1]s] is recommended the place: "%[2]s" (Type: %[3]s).

Qloo, a cultural intelligence platform, provides the following data to explain this recommendation:
- Place Name: %[2]s
- Place Type: %[3]s
- Place Description: %[4]s
- Qloo Affinity/Popularity Score (higher is stronger): %[5]s
- Additional Qloo Metadata (for context): %[6]s

Based strictly on this data, explain in a natural, engaging sentence or two why someone with interests in [%[1]s] would likely enjoy "%[2]s". Focus on the connection implied by the data (e.g., shared aesthetics, audience overlap, thematic links, category). Do not invent reasons not supported by the data provided. Make it sound like a helpful, personalized tip.
`, interests, place.Name, place.Type, description,
		strconv.FormatFloat(place.AffinityScore, 'f', 4, 64), string(metadataJSON))
}

func joinInterests(interests []string) string {
	return strings.Join(interests, ", ")
}

func unconfiguredFallback(place types.Place, interests string) string {
	return fmt.Sprintf("This place, %s, is recommended based on your interests: [%s]. (Detailed explanation requires LLM integration).",
		place.Name, interests)
}

func errorFallback(place types.Place) string {
	return fmt.Sprintf("An error occurred while generating the explanation for %s. The recommendation is based on data from Qloo.",
		place.Name)
}

var nonCommittalMarkers = []string{"i cannot", "the provided data does not"}

func isNonCommittal(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range nonCommittalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
