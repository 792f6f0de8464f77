package market

import "strings"

// 符号转换：规范符号到各数据源专用代码的纯函数
// 市场层是唯一允许做这类转换的组件

// AShareSecID A股代码转东方财富secid，上海=1，深圳/北交所=0
func AShareSecID(symbol string) string {
	if symbol == "" {
		return ""
	}
	switch symbol[0] {
	case '6':
		return "1." + symbol
	case '0', '3', '4', '8':
		return "0." + symbol
	}
	return ""
}

// AShareTencent A股代码转腾讯财经格式
func AShareTencent(symbol string) string {
	if symbol == "" {
		return ""
	}
	switch symbol[0] {
	case '6':
		return "sh" + symbol
	case '0', '3':
		return "sz" + symbol
	case '4', '8':
		return "bj" + symbol // 北交所
	}
	return ""
}

// AShareYahoo A股代码转雅虎格式
func AShareYahoo(symbol string) string {
	if symbol == "" {
		return ""
	}
	switch symbol[0] {
	case '6':
		return symbol + ".SS"
	case '0', '3':
		return symbol + ".SZ"
	case '4', '8':
		return symbol + ".BJ"
	}
	return ""
}

func zeroPad(symbol string, width int) string {
	if len(symbol) >= width {
		return symbol
	}
	return strings.Repeat("0", width-len(symbol)) + symbol
}

// HShareSecID 港股代码转东方财富secid，市场前缀116，代码补足5位
func HShareSecID(symbol string) string {
	if symbol == "" {
		return ""
	}
	return "116." + zeroPad(symbol, 5)
}

// HShareTencent 港股代码转腾讯财经格式
func HShareTencent(symbol string) string {
	if symbol == "" {
		return ""
	}
	return "hk" + zeroPad(symbol, 5)
}

// HShareYahoo 港股代码转雅虎格式，雅虎用4位代码
func HShareYahoo(symbol string) string {
	if symbol == "" {
		return ""
	}
	return zeroPad(symbol, 4) + ".HK"
}

// BinanceSymbol 规范符号转币安格式
// BTC/USDT → BTCUSDT，BTC/USDT:USDT 去掉结算后缀
func BinanceSymbol(symbol string) string {
	if symbol == "" {
		return ""
	}
	if idx := strings.Index(symbol, ":"); idx >= 0 {
		symbol = symbol[:idx]
	}
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// 通过雅虎取数的传统商品期货代码
var yahooFuturesRoots = map[string]bool{
	"GC": true, // 黄金
	"SI": true, // 白银
	"CL": true, // 原油
	"NG": true, // 天然气
	"ZC": true, // 玉米
	"ZW": true, // 小麦
}

// IsTraditionalFutures 是否为传统商品期货符号
func IsTraditionalFutures(symbol string) bool {
	if strings.HasSuffix(symbol, "=F") {
		return true
	}
	return yahooFuturesRoots[strings.ToUpper(symbol)]
}

// TraditionalFuturesYahoo 商品期货符号转雅虎格式，非商品期货返回空串
func TraditionalFuturesYahoo(symbol string) string {
	if !IsTraditionalFutures(symbol) {
		return ""
	}
	if strings.HasSuffix(symbol, "=F") {
		return symbol
	}
	return strings.ToUpper(symbol) + "=F"
}

// CryptoFuturesBinance 加密永续符号转币安格式，商品期货返回空串
func CryptoFuturesBinance(symbol string) string {
	if IsTraditionalFutures(symbol) {
		return ""
	}
	return BinanceSymbol(symbol)
}
