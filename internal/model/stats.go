package model

// Stats keeps upload totals per table
type Stats struct {
	Name          string `gorm:"primaryKey" json:"table"` // Table the uploads were made to
	UsedStorage   int64  `json:"usedStorage"`
	UploadedFiles int    `json:"uploadedFiles"`
}
