package viewer

import (
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/charmbracelet/bubbles/list"

	"github.com/activecm/beaconwatch/database"
	"github.com/activecm/beaconwatch/enrich"
)

// Item is a single detection_results row, enriched with a human-readable
// display address, shown as one row of the results list.
type Item struct {
	database.DetectionResult
	DisplayHost string
}

func (i Item) FilterValue() string { return i.Host } // no-op, filtering handled by the search bar

func (i Item) GetHost() string        { return i.Host }
func (i Item) GetDisplayHost() string { return i.DisplayHost }
func (i Item) GetScore() string       { return renderIndicator(i.Detected, fmt.Sprintf("%1.3f", i.PScore)) }
func (i Item) GetFFTPeak() string     { return fmt.Sprintf("%1.3f", i.FFTPeak) }
func (i Item) GetAutocorrMax() string { return fmt.Sprintf("%1.3f", i.AutocorrMax) }
func (i Item) GetEntropyNorm() string { return fmt.Sprintf("%1.3f", i.EntropyNorm) }
func (i Item) GetAnalyzedAt() string  { return i.AnalyzedAt.UTC().Format("2006-01-02 15:04:05") }
func (i Item) GetDetected() string {
	if i.Detected {
		return renderIndicator(true, "yes")
	}
	return "no"
}

// GetResults queries db for the most recent detection_results row per host,
// applying filter, resolving each host's display address through resolver.
func GetResults(db *database.DB, resolver enrich.NeighborResolver, filter Filter, currentPage, pageSize int) ([]list.Item, bool, error) {
	query, params, appliedFilter := BuildResultsQuery(filter, currentPage, pageSize)

	ctx := clickhouse.Context(db.GetContext(), clickhouse.WithParameters(params))

	rows, err := db.Conn.Query(ctx, query)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var items []list.Item
	for rows.Next() {
		var rec database.DetectionResult
		if err := rows.ScanStruct(&rec); err != nil {
			return nil, false, fmt.Errorf("could not read detection result for viewer: %w", err)
		}
		items = append(items, list.Item(Item{DetectionResult: rec, DisplayHost: resolver.Resolve(rec.Host)}))
	}

	return items, appliedFilter, rows.Err()
}

// BuildResultsQuery builds a query over the latest detection per host,
// applying filter's where/having/sort clauses.
func BuildResultsQuery(filter Filter, currentPage, pageSize int) (string, clickhouse.Parameters, bool) {
	params := clickhouse.Parameters{}

	query := `--sql
		SELECT host, analyzed_at, p_score, fft_peak, autocorr_max, entropy_norm, sample_count, detected, pass_id
		FROM (
			SELECT *, row_number() OVER (PARTITION BY host ORDER BY analyzed_at DESC) AS rn
			FROM {database:Identifier}.detection_results
		)
		WHERE rn = 1
	`

	var whereConditions []string
	if filter.Host != "" {
		whereConditions = append(whereConditions, "host = {host:String}")
		params["host"] = filter.Host
	}
	if filter.Detected != nil {
		whereConditions = append(whereConditions, "detected = {detected:Bool}")
		params["detected"] = fmt.Sprint(*filter.Detected)
	}
	if filter.Score.Value != "" && filter.Score.Operator != "" {
		whereConditions = append(whereConditions, "p_score "+filter.Score.Operator+" {score:Float64}")
		params["score"] = filter.Score.Value
	}
	if len(whereConditions) > 0 {
		query += "AND " + strings.Join(whereConditions, " AND ") + "\n"
	}

	var sortingConditions []string
	if filter.SortScore != "" {
		sortingConditions = append(sortingConditions, "p_score "+filter.SortScore)
	}
	if filter.SortHost != "" {
		sortingConditions = append(sortingConditions, "host "+filter.SortHost)
	}
	if len(sortingConditions) > 0 {
		query += "ORDER BY " + strings.Join(sortingConditions, ",") + "\n"
	} else {
		query += "ORDER BY p_score DESC\n"
	}

	offset := currentPage * pageSize
	if offset > 0 {
		query += "OFFSET {skip:Int32} ROWS FETCH NEXT {page_size:Int32} ROWS ONLY"
		params["skip"] = fmt.Sprintf("%d", offset)
	} else {
		query += "LIMIT {page_size:Int32}"
	}
	params["page_size"] = fmt.Sprint(pageSize)

	appliedFilter := len(whereConditions) > 0 || len(sortingConditions) > 0
	return query, params, appliedFilter
}
