package provider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/neexbeast/tripsync/internal/schedule"
)

// KST is Korea Standard Time. The forecast service publishes in KST only.
var KST = time.FixedZone("KST", 9*60*60)

// ---- KMA short-term forecast ----

// ForecastClient reads the Korea Meteorological Administration village
// forecast (getVilageFcst).
type ForecastClient struct {
	serviceKey string
	baseURL    string
	client     *http.Client
}

const kmaDefaultURL = "https://apis.data.go.kr/1360000/VilageFcstInfoService_2.0/getVilageFcst"

// NewForecastClient constructs a ForecastClient with the given data.go.kr service key.
func NewForecastClient(serviceKey string) *ForecastClient {
	return &ForecastClient{serviceKey: serviceKey, baseURL: kmaDefaultURL, client: newHTTPClient()}
}

// NewForecastClientWithURL constructs a ForecastClient pointing at a custom base URL (for tests).
func NewForecastClientWithURL(baseURL, serviceKey string) *ForecastClient {
	return &ForecastClient{serviceKey: serviceKey, baseURL: baseURL, client: newHTTPClient()}
}

type kmaResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items struct {
				Item []kmaItem `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

type kmaItem struct {
	Category  string `json:"category"`
	FcstDate  string `json:"fcstDate"`
	FcstTime  string `json:"fcstTime"`
	FcstValue string `json:"fcstValue"`
}

// Forecast returns the weather for day (YYYY-MM-DD) at grid point (nx, ny)
// from the forecast issued at baseDate/baseTime. The noon slot is used when
// published, otherwise the earliest slot of the day. An empty day means the
// earliest slot overall. Returns nil when the forecast does not cover day.
func (c *ForecastClient) Forecast(ctx context.Context, baseDate, baseTime string, nx, ny int, day string) (*schedule.Weather, error) {
	q := url.Values{}
	q.Set("pageNo", "1")
	q.Set("numOfRows", "1000")
	q.Set("dataType", "JSON")
	q.Set("base_date", baseDate)
	q.Set("base_time", baseTime)
	q.Set("nx", strconv.Itoa(nx))
	q.Set("ny", strconv.Itoa(ny))
	// The service key is issued URL-encoded already.
	endpoint := c.baseURL + "?serviceKey=" + c.serviceKey + "&" + q.Encode()

	var raw kmaResponse
	if err := doGet(ctx, c.client, endpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("kma forecast for %d,%d: %w", nx, ny, err)
	}
	if code := raw.Response.Header.ResultCode; code != "00" {
		return nil, fmt.Errorf("kma forecast for %d,%d: result %s %s", nx, ny, code, raw.Response.Header.ResultMsg)
	}

	return summarize(raw.Response.Body.Items.Item, compactDate(day)), nil
}

// summarize picks one forecast slot and reduces its categories to a Weather.
func summarize(items []kmaItem, day string) *schedule.Weather {
	slots := make(map[string]map[string]string)
	for _, it := range items {
		if day != "" && it.FcstDate != day {
			continue
		}
		slot := it.FcstDate + it.FcstTime
		if slots[slot] == nil {
			slots[slot] = make(map[string]string)
		}
		slots[slot][it.Category] = it.FcstValue
	}
	if len(slots) == 0 {
		return nil
	}

	keys := make([]string, 0, len(slots))
	for k := range slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chosen := keys[0]
	if day != "" {
		if _, ok := slots[day+"1200"]; ok {
			chosen = day + "1200"
		}
	}
	values := slots[chosen]

	tmp, err := strconv.ParseFloat(values["TMP"], 64)
	if err != nil {
		return nil
	}
	return &schedule.Weather{Status: skyStatus(values["SKY"], values["PTY"]), Temperature: tmp}
}

// skyStatus maps the precipitation (PTY) and sky (SKY) codes to a label.
// Precipitation wins over cloud cover.
func skyStatus(sky, pty string) string {
	switch pty {
	case "1":
		return "비"
	case "2":
		return "비/눈"
	case "3":
		return "눈"
	case "4":
		return "소나기"
	}
	switch sky {
	case "1":
		return "맑음"
	case "3":
		return "구름많음"
	case "4":
		return "흐림"
	}
	return "알 수 없음"
}

func compactDate(day string) string {
	t, err := schedule.ParseDate(day)
	if err != nil {
		return ""
	}
	return t.Format("20060102")
}

// forecastBaseHours are the hours (KST) a village forecast is issued at.
var forecastBaseHours = []int{23, 20, 17, 14, 11, 8, 5, 2}

// forecastDelay is how long after its base time a forecast becomes available.
const forecastDelay = 10 * time.Minute

// BaseTime returns the base date (YYYYMMDD) and time (HHMM) of the most
// recent village forecast available at now.
func BaseTime(now time.Time) (baseDate, baseTime string) {
	t := now.In(KST).Add(-forecastDelay)
	for _, h := range forecastBaseHours {
		if t.Hour() >= h {
			return t.Format("20060102"), fmt.Sprintf("%02d00", h)
		}
	}
	return t.AddDate(0, 0, -1).Format("20060102"), "2300"
}

// ToGrid converts WGS84 coordinates to the KMA forecast grid using the
// service's Lambert conformal conic projection.
func ToGrid(lat, lon float64) (nx, ny int) {
	const (
		earthRadius = 6371.00877 // km
		gridSize    = 5.0        // km
		deg         = math.Pi / 180.0
		slat1       = 30.0 * deg
		slat2       = 60.0 * deg
		olon        = 126.0 * deg
		olat        = 38.0 * deg
		xo          = 43.0
		yo          = 136.0
	)
	re := earthRadius / gridSize

	sn := math.Tan(math.Pi*0.25+slat2*0.5) / math.Tan(math.Pi*0.25+slat1*0.5)
	sn = math.Log(math.Cos(slat1)/math.Cos(slat2)) / math.Log(sn)
	sf := math.Tan(math.Pi*0.25 + slat1*0.5)
	sf = math.Pow(sf, sn) * math.Cos(slat1) / sn
	ro := math.Tan(math.Pi*0.25 + olat*0.5)
	ro = re * sf / math.Pow(ro, sn)

	ra := math.Tan(math.Pi*0.25 + lat*deg*0.5)
	ra = re * sf / math.Pow(ra, sn)
	theta := lon*deg - olon
	if theta > math.Pi {
		theta -= 2.0 * math.Pi
	}
	if theta < -math.Pi {
		theta += 2.0 * math.Pi
	}
	theta *= sn

	nx = int(math.Floor(ra*math.Sin(theta) + xo + 0.5))
	ny = int(math.Floor(ro - ra*math.Cos(theta) + yo + 0.5))
	return nx, ny
}
