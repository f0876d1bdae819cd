package db

import (
	"strings"
	"testing"
	"time"

	"github.com/ferndale/shiftboard/internal/models"
)

func TestMySQLDSN(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "local",
			opts: Options{Host: "127.0.0.1", Port: 3306, User: "shiftboard", Password: "secret", Database: "shiftboard_site1"},
			want: []string{"shiftboard:secret@tcp(127.0.0.1:3306)/shiftboard_site1", "parseTime=true"},
		},
		{
			name: "remote",
			opts: Options{Host: "db.vpc.internal", Port: 3307, User: "sb", Database: "shiftboard"},
			want: []string{"sb@tcp(db.vpc.internal:3307)/shiftboard", "parseTime=true"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MySQLDSN(tt.opts)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("DSN %q missing %q", got, w)
				}
			}
		})
	}
}

func TestConnect_UnknownDriver(t *testing.T) {
	if _, err := Connect(Options{Driver: "postgres"}); err == nil {
		t.Fatal("Connect() accepted unknown driver")
	}
}

func TestAutoMigrate_SQLiteInMemory(t *testing.T) {
	conn, err := Connect(Options{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect(): %v", err)
	}
	if err := AutoMigrate(conn); err != nil {
		t.Fatalf("AutoMigrate(): %v", err)
	}
	for _, m := range AllModels() {
		if !conn.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}

func TestCheckpointRun_CompositeKeyDedupes(t *testing.T) {
	conn, err := Connect(Options{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect(): %v", err)
	}
	if err := AutoMigrate(conn); err != nil {
		t.Fatalf("AutoMigrate(): %v", err)
	}
	run := models.CheckpointRun{Date: "2026-05-12", CheckpointID: "day-open", FiredAt: time.Now()}
	if err := conn.Create(&run).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	dup := models.CheckpointRun{Date: "2026-05-12", CheckpointID: "day-open", FiredAt: time.Now()}
	if err := conn.Create(&dup).Error; err == nil {
		t.Fatal("duplicate (date, checkpoint) row was accepted")
	}
	other := models.CheckpointRun{Date: "2026-05-12", CheckpointID: "late-close", FiredAt: time.Now()}
	if err := conn.Create(&other).Error; err != nil {
		t.Errorf("different checkpoint same day rejected: %v", err)
	}
}
