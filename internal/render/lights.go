package render

import (
	"html/template"
	"strings"
)

const (
	goodQuality      = `<span class="dot"></span> <span class="dot"></span> <span class="dot-green"></span> Good Quality`
	mediumQuality    = `<span class="dot"></span> <span class="dot-yellow"></span> <span class="dot"></span> Medium Quality`
	badQuality       = `<span class="dot-red"></span> <span class="dot"></span> <span class="dot"></span> Bad Quality`
	undefinedQuality = `<span class="dot"></span> <span class="dot"></span> <span class="dot"></span> Undefined Quality`
)

// TrafficLights：标签到三色灯 HTML（自左向右红、黄、绿）；green/1、yellow/2、red/3，其余一律视为未定义
func TrafficLights(label string) template.HTML {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "green", "1":
		return goodQuality
	case "yellow", "2":
		return mediumQuality
	case "red", "3":
		return badQuality
	}
	return undefinedQuality
}
