package data

import (
	"log"

	"github.com/campus-stack/faculty-advisor/src/advisor/types"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func MustMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	if err := db.AutoMigrate(&types.User{}, &types.Setting{}, &types.MemoryRecord{}); err != nil {
		log.Fatalf("mysql migrate: %v", err)
	}
	return db
}
