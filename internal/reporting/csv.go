package reporting

import (
	"fmt"

	"github.com/gocarina/gocsv"
)

// RenderCSV renders leaderboard rows as CSV with a header line.
// Money columns stay in minor units so the output can be re-imported losslessly.
func RenderCSV(rows []LeaderboardRow) (string, error) {
	if rows == nil {
		rows = []LeaderboardRow{}
	}
	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return "", fmt.Errorf("render csv: %w", err)
	}
	return out, nil
}
