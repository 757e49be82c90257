// Package scraper holds the search pipeline: domain types, the pagination
// walker, the concurrent detail aggregator and the service that ties them
// together.
package scraper
