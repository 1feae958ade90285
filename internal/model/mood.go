package model

import "time"

// Moods 心情枚举
var Moods = []string{
	"happy", "sad", "bored", "motivated", "romantic", "adventurous",
	"relaxing", "inspiring", "funny", "dramatic", "thrilling", "mysterious",
	"stressed", "excited", "melancholic", "energetic",
}

// Situations 观影场景枚举
var Situations = []string{
	"alone", "family", "date", "friends", "party", "workout", "study",
	"travel", "dinner", "weekend", "weekday", "work", "vacation", "holiday",
}

// TimeSlots 可用时长（分钟）
var TimeSlots = []string{"30", "60", "120", "180", "240"}

// MoodEntry 心情记录
type MoodEntry struct {
	ID            int       `json:"id" gorm:"primaryKey"`
	UserID        int       `json:"user_id" gorm:"not null;index"`
	Mood          string    `json:"mood" gorm:"not null"`
	Intensity     int       `json:"intensity" gorm:"default:5"`
	Situation     string    `json:"situation"`
	TimeAvailable string    `json:"time_available"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}

// Contains 判断枚举中是否包含某值
func Contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
