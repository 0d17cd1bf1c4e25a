package ledger

const (
	insertRunSQL = `
INSERT INTO runs (extractor,
                  resource_id,
                  started_at,
                  status)
VALUES (?, ?, ?, ?)`

	finishRunSQL = `
UPDATE runs
SET finished_at   = ?,
    status        = ?,
    files_created = ?,
    bytes_created = ?,
    message       = ?
WHERE id = ?`

	selectCompletedSQL = `
SELECT EXISTS(SELECT 1
              FROM runs
              WHERE extractor = ?
                AND resource_id = ?
                AND status = ?)`

	selectRecentRunsSQL = `
SELECT id,
       extractor,
       resource_id,
       started_at,
       finished_at,
       status,
       files_created,
       bytes_created,
       message
FROM runs
ORDER BY started_at DESC, id DESC
LIMIT ?`

	insertFootprintSQL = `
INSERT INTO footprints (run_id,
                        dataset_id,
                        sensor,
                        capture_time,
                        captured_at,
                        centroid_lat,
                        centroid_lon,
                        nw_lat,
                        nw_lon,
                        se_lat,
                        se_lon,
                        easting,
                        northing,
                        utm_zone,
                        utm_letter,
                        fov_north,
                        fov_south,
                        fov_west,
                        fov_east)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectFootprintsSQL = `
SELECT id,
       run_id,
       dataset_id,
       sensor,
       capture_time,
       captured_at,
       centroid_lat,
       centroid_lon,
       nw_lat,
       nw_lon,
       se_lat,
       se_lon,
       easting,
       northing,
       utm_zone,
       utm_letter,
       fov_north,
       fov_south,
       fov_west,
       fov_east
FROM footprints
WHERE sensor = ?`
)
