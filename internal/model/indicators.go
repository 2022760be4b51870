package model

// Frequency is the publication frequency of an indicator.
type Frequency string

const (
	FrequencyDaily   Frequency = "diario"
	FrequencyMonthly Frequency = "mensual"
	FrequencyAnnual  Frequency = "anual"
)

// Indicator describes one series in the upstream catalog.
type Indicator struct {
	Code      string    `json:"codigo" yaml:"codigo"`
	Name      string    `json:"nombre" yaml:"nombre"`
	Frequency Frequency `json:"frecuencia" yaml:"frecuencia"`
	Unit      string    `json:"unidad" yaml:"unidad"`
}

// DailyIndicators are the daily series shown on the dashboard.
var DailyIndicators = []Indicator{
	{Code: "PD04650MD", Name: "Reservas internacionales netas", Frequency: FrequencyDaily, Unit: "US$ millones"},
	{Code: "PD12301MD", Name: "Tasa de Referencia de la Política Monetaria", Frequency: FrequencyDaily, Unit: "%"},
	{Code: "PD04692MD", Name: "Tasa de Interés Interbancaria, S/", Frequency: FrequencyDaily, Unit: "%"},
	{Code: "PD04693MD", Name: "Tasa de Interés Interbancaria, US$", Frequency: FrequencyDaily, Unit: "%"},
	{Code: "PD04637PD", Name: "Tipo de Cambio - Compra", Frequency: FrequencyDaily, Unit: "S/ por US$"},
	{Code: "PD04638PD", Name: "Tipo de Cambio - Venta", Frequency: FrequencyDaily, Unit: "S/ por US$"},
	{Code: "PD38026MD", Name: "Índice General Bursátil BVL (índice)", Frequency: FrequencyDaily, Unit: "índice"},
	{Code: "PD04694MD", Name: "Índice General Bursátil BVL (var%)", Frequency: FrequencyDaily, Unit: "%"},
	{Code: "PD04701XD", Name: "Cobre (Londres, cUS$ por libras)", Frequency: FrequencyDaily, Unit: "cUS$ por libras"},
	{Code: "PD04704XD", Name: "Oro (Londres, US$ por onzas troy)", Frequency: FrequencyDaily, Unit: "US$ por onzas troy"},
	{Code: "PD04721XD", Name: "Dow Jones (var%)", Frequency: FrequencyDaily, Unit: "%"},
}

// MonthlyIndicators are the monthly series offered in the explorer.
var MonthlyIndicators = []Indicator{
	{Code: "PN38705PM", Name: "Índice de Precios al Consumidor (IPC)", Frequency: FrequencyMonthly, Unit: "índice"},
	{Code: "PN01271PM", Name: "IPC var%", Frequency: FrequencyMonthly, Unit: "%"},
	{Code: "PN01496BM", Name: "Exportaciones Total", Frequency: FrequencyMonthly, Unit: "US$ millones"},
	{Code: "PN02294FM", Name: "Ingresos Tributarios", Frequency: FrequencyMonthly, Unit: "millones S/"},
	{Code: "PN38072FM", Name: "Gasto Total del Gobierno General", Frequency: FrequencyMonthly, Unit: "millones S/"},
}

// AnnualIndicators are the annual GDP series.
var AnnualIndicators = []Indicator{
	{Code: "PM04908AA", Name: "PBI Anual (Nivel)", Frequency: FrequencyAnnual, Unit: "millones S/"},
	{Code: "PM05373BA", Name: "PBI Anual (Var%)", Frequency: FrequencyAnnual, Unit: "%"},
}

// Catalog returns every known indicator, daily first.
func Catalog() []Indicator {
	all := make([]Indicator, 0, len(DailyIndicators)+len(MonthlyIndicators)+len(AnnualIndicators))
	all = append(all, DailyIndicators...)
	all = append(all, MonthlyIndicators...)
	all = append(all, AnnualIndicators...)
	return all
}

// CatalogCodes returns the codes of every known indicator.
func CatalogCodes() []string {
	cat := Catalog()
	codes := make([]string, len(cat))
	for i, ind := range cat {
		codes[i] = ind.Code
	}
	return codes
}

// LookupIndicator finds an indicator by code.
func LookupIndicator(code string) (Indicator, bool) {
	for _, ind := range Catalog() {
		if ind.Code == code {
			return ind, true
		}
	}
	return Indicator{}, false
}
