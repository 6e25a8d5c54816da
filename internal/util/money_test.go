package util

import "testing"

func TestParseCents(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  Cents
	}{
		{name: "plain", input: "119.76", want: 11976},
		{name: "dollar sign", input: "$119.76", want: 11976},
		{name: "thousands", input: "1,199.76", want: 119976},
		{name: "whole dollars", input: "45", want: 4500},
		{name: "single decimal", input: "3.5", want: 350},
		{name: "negative", input: "-12.00", want: -1200},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseCents(tc.input)
			if !ok {
				t.Fatalf("not parsed")
			}
			if got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}

	if _, ok := ParseCents("total"); ok {
		t.Fatal("parsed non-numeric")
	}
	if _, ok := ParseCents("12.345.67"); ok {
		t.Fatal("parsed malformed")
	}
}

func TestFindAmounts(t *testing.T) {
	amounts := FindAmounts("Subtotal: $109.99 Tax: 9.77 Total $119.76")
	if len(amounts) != 3 {
		t.Fatalf("len=%d", len(amounts))
	}
	if amounts[2] != 11976 {
		t.Fatalf("last=%d", amounts[2])
	}
}

func TestCentsString(t *testing.T) {
	if Cents(11976).String() != "119.76" {
		t.Fatalf("got %s", Cents(11976).String())
	}
	if Cents(305).String() != "3.05" {
		t.Fatalf("got %s", Cents(305).String())
	}
}
