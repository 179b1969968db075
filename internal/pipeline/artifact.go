package pipeline

import "time"

// ArtifactName is the file name of a chart written on date.
func ArtifactName(canonical string, date time.Time) string {
	return canonical + "_" + date.Format("20060102") + ".png"
}
