// Package mocks contains mocks for the interfaces in [model].
package mocks
