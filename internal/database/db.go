package database

import (
	"log"
	"time"

	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Init(dsn, adminUsername, adminPassword string) *gorm.DB {
	var db *gorm.DB
	var err error

	const maxAttempts = 10
	for i := 1; i <= maxAttempts; i++ {
		log.Printf("trying to connect to DB (attempt %d/%d)...", i, maxAttempts)

		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			log.Println("connected to DB successfully")
			break
		}

		log.Printf("failed to connect to DB: %v", err)
		time.Sleep(2 * time.Second)
	}

	if err != nil {
		log.Fatalf("failed to connect to db after %d attempts: %v", maxAttempts, err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectVersion{},
		&models.WizardSession{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	// at most one version per project may sit in pending_approval; the
	// submit path checks this too, the index closes the race window
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_single_pending_version
		ON project_versions (project_id)
		WHERE status = 'pending_approval' AND deleted_at IS NULL`).Error
	if err != nil {
		log.Fatalf("failed to create pending-version index: %v", err)
	}

	createDefaultAdmin(db, adminUsername, adminPassword)
	seedDefaultUsers(db)

	return db
}

// the admin account comes from config only, never from the register form
func createDefaultAdmin(db *gorm.DB, username, password string) {
	var count int64
	if err := db.Model(&models.User{}).
		Where("role = ?", roles.RoleAdmin).
		Count(&count).Error; err != nil {
		log.Printf("failed to check admin user: %v", err)
		return
	}
	if count > 0 {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("failed to hash default admin password: %v", err)
		return
	}

	admin := models.User{
		Username:     username,
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         roles.RoleAdmin,
		IsActive:     true,
	}

	if err := db.Create(&admin).Error; err != nil {
		log.Printf("failed to create default admin: %v", err)
		return
	}

	log.Printf("created default admin user: %s", username)
}

// demo accounts covering each workflow role
func seedDefaultUsers(db *gorm.DB) {
	type seedUser struct {
		Username string
		Display  string
		Password string
		Role     roles.Role
	}

	users := []seedUser{
		{Username: "pmi@pfmt.local", Display: "Pat Initiator", Password: "Pmi123!", Role: roles.RolePMI},
		{Username: "director@pfmt.local", Display: "Dana Director", Password: "Director123!", Role: roles.RoleDirector},
		{Username: "pm@pfmt.local", Display: "Morgan Manager", Password: "Pm123!", Role: roles.RolePM},
		{Username: "spm@pfmt.local", Display: "Sam Senior", Password: "Spm123!", Role: roles.RoleSPM},
		{Username: "analyst@pfmt.local", Display: "Alex Analyst", Password: "Analyst123!", Role: roles.RoleAnalyst},
	}

	for _, u := range users {
		var count int64
		if err := db.Model(&models.User{}).
			Where("username = ?", u.Username).
			Count(&count).Error; err != nil {
			log.Printf("failed to check seed user %s: %v", u.Username, err)
			continue
		}
		if count > 0 {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("failed to hash password for %s: %v", u.Username, err)
			continue
		}

		user := models.User{
			Username:     u.Username,
			DisplayName:  u.Display,
			PasswordHash: string(hash),
			Role:         u.Role,
			IsActive:     true,
		}

		if err := db.Create(&user).Error; err != nil {
			log.Printf("failed to create seed user %s: %v", u.Username, err)
			continue
		}

		log.Printf("created seed user: %s (role=%s)", u.Username, u.Role)
	}
}
