package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// if a { return err }; if b { return err }  =>  if a || b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// Nested loops are sometimes fine; flag them for a second look.
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// injectedLoggers keeps every component on the logger it was constructed with.
func injectedLoggers(m dsl.Matcher) {
	m.Import("github.com/rs/zerolog/log")

	m.Match(`log.$_($*_)`).
		Where(m.File().Imports("github.com/rs/zerolog/log")).
		Report(`use the injected zerolog.Logger instead of the global zerolog/log logger`)

	m.Match(`fmt.Printf($*_)`, `fmt.Println($*_)`, `fmt.Print($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`print through the injected logger; only cmd/ writes to stdout directly`)
}

// wrappedErrors keeps error chains intact for errors.Is and errors.As.
func wrappedErrors(m dsl.Matcher) {
	m.Match(`fmt.Errorf($f, $*_, $err)`).
		Where(m["err"].Type.Is("error") && m["f"].Text.Matches(`%v"$`)).
		Report(`wrap errors with %w so callers can match them`)

	m.Match(`errors.New($x.Error())`).
		Where(m["x"].Type.Is("error")).
		Report(`errors.New drops the original error; wrap it with fmt.Errorf("...: %w", $x)`)
}
