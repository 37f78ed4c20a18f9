package photo

import (
	"bitwise74/proffer/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const table = "photos"

// addStats adds files and bytes to the totals of the photos table. Negative
// values subtract.
func addStats(tx *gorm.DB, files int, size int64) error {
	return tx.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"used_storage":   gorm.Expr("stats.used_storage + ?", size),
				"uploaded_files": gorm.Expr("stats.uploaded_files + ?", files),
			}),
		}).
		Create(&model.Stats{
			Name:          table,
			UsedStorage:   max(size, 0),
			UploadedFiles: max(files, 0),
		}).
		Error
}
